// Package inbox owns the conversation states and the message log of the
// assistant and runs every inbound message through the dialogue engine.
package inbox

import (
	"cmp"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"oneinbox/internal/dialogue"
	"oneinbox/internal/domain"
	"oneinbox/internal/textnorm"
)

const (
	DefaultMessageCap  = 400
	DefaultStateCap    = 300
	DefaultAutoUser    = "Atención"
	DefaultDefaultUser = "Usuario"
)

// Responder advances a conversation state by one inbound message.
// *dialogue.Engine satisfies it.
type Responder interface {
	Reply(st *dialogue.State, text string) dialogue.Turn
}

// Config bounds the memory of a Store and names its synthetic users.
type Config struct {
	// MessageCap is the maximum number of log entries kept.
	MessageCap int
	// StateCap is the maximum number of conversation states kept.
	StateCap int
	// AutoUser authors system replies.
	AutoUser string
	// DefaultUser replaces a blank sender name.
	DefaultUser string
}

func (c Config) withDefaults() Config {
	if c.MessageCap <= 0 {
		c.MessageCap = DefaultMessageCap
	}
	if c.StateCap <= 0 {
		c.StateCap = DefaultStateCap
	}
	if strings.TrimSpace(c.AutoUser) == "" {
		c.AutoUser = DefaultAutoUser
	}
	if strings.TrimSpace(c.DefaultUser) == "" {
		c.DefaultUser = DefaultDefaultUser
	}
	return c
}

type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces the random UUID message ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// Exchange is the result of one recorded turn: the inbound message, the
// system reply to it and what the engine decided.
type Exchange struct {
	Inbound domain.Message
	Reply   domain.Message
	Turn    dialogue.Turn
}

type thread struct {
	platform domain.Platform
	state    *dialogue.State
	touch    uint64
}

// Store is safe for concurrent use. One mutex covers the state table, the
// log and the sequence counter for the whole of a turn.
type Store struct {
	engine Responder
	cfg    Config
	now    func() time.Time
	newID  func() string
	log    *slog.Logger

	mu       sync.Mutex
	threads  map[string]*thread
	messages []domain.Message
	seq      int64
	touches  uint64
}

func New(engine Responder, cfg Config, opts ...Option) (*Store, error) {
	if engine == nil {
		return nil, errors.New("inbox: engine must not be nil")
	}
	s := &Store{
		engine:  engine,
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		newID:   uuid.NewString,
		log:     slog.Default(),
		threads: make(map[string]*thread),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ThreadID derives the conversation key of a sender on a platform. Names
// that differ only in case or accents share a thread.
func ThreadID(platform domain.Platform, user string) string {
	return string(platform) + ":" + textnorm.Normalize(user)
}

// DisplayUser returns the trimmed sender name, or the configured default
// when it is blank.
func (s *Store) DisplayUser(user string) string {
	if u := strings.TrimSpace(user); u != "" {
		return u
	}
	return s.cfg.DefaultUser
}

// RecordTurn answers text from user on platform, appends the inbound
// message and the reply to the log and enforces the memory caps.
func (s *Store) RecordTurn(platform domain.Platform, user, text string) Exchange {
	user = s.DisplayUser(user)
	id := ThreadID(platform, user)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	th, ok := s.threads[id]
	if !ok {
		th = &thread{platform: platform, state: dialogue.NewState(user)}
		s.threads[id] = th
	}
	s.touches++
	th.touch = s.touches
	th.state.User = user
	th.state.LastSeen = now

	inbound := s.message(now, id, "", platform, domain.RoleUser, user, text)
	turn := s.engine.Reply(th.state, text)
	reply := s.message(now, id, inbound.ID, platform, domain.RoleSystem, s.cfg.AutoUser, turn.Reply)

	s.messages = append(s.messages, inbound, reply)
	s.evict()

	return Exchange{Inbound: inbound, Reply: reply, Turn: turn}
}

func (s *Store) message(now time.Time, threadID, replyTo string, platform domain.Platform, role domain.Role, user, text string) domain.Message {
	s.seq++
	return domain.Message{
		ID:        s.newID(),
		Seq:       s.seq,
		ThreadID:  threadID,
		ReplyTo:   replyTo,
		Platform:  platform,
		Role:      role,
		User:      user,
		Text:      text,
		Timestamp: now.Format(domain.TimestampLayout),
	}
}

// evict trims the log from the front and drops the least recently seen
// states. Callers hold s.mu.
func (s *Store) evict() {
	if over := len(s.messages) - s.cfg.MessageCap; over > 0 {
		s.messages = slices.Delete(s.messages, 0, over)
		s.log.Debug("inbox: trimmed message log", "dropped", over, "kept", len(s.messages))
	}

	over := len(s.threads) - s.cfg.StateCap
	if over <= 0 {
		return
	}
	ids := make([]string, 0, len(s.threads))
	for id := range s.threads {
		ids = append(ids, id)
	}
	// Order by arrival, not LastSeen: the wall clock may step backwards.
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Compare(s.threads[a].touch, s.threads[b].touch)
	})
	for _, id := range ids[:over] {
		delete(s.threads, id)
		s.log.Debug("inbox: evicted conversation state", "thread_id", id)
	}
}

// Reset drops every state and message and restarts the sequence.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = make(map[string]*thread)
	s.messages = nil
	s.seq = 0
	s.touches = 0
}

// Messages returns a copy of the log, oldest first.
func (s *Store) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Threads lists the known threads of platform, or of every platform when
// platform is empty, ordered by thread id.
func (s *Store) Threads(platform domain.Platform) []domain.ThreadSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.ThreadSummary, 0, len(s.threads))
	for id, th := range s.threads {
		if platform != "" && th.platform != platform {
			continue
		}
		out = append(out, domain.ThreadSummary{
			ThreadID: id,
			Platform: th.platform,
			User:     th.state.User,
			Intent:   string(th.state.Intent),
			Expect:   string(th.state.Control.Expect),
			Ticket:   th.state.Ticket,
			LastSeen: th.state.LastSeen.Format(domain.TimestampLayout),
		})
	}
	slices.SortFunc(out, func(a, b domain.ThreadSummary) int {
		return strings.Compare(a.ThreadID, b.ThreadID)
	})
	return out
}

// State returns a copy of the conversation state of threadID.
func (s *Store) State(threadID string) (dialogue.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok := s.threads[threadID]
	if !ok {
		return dialogue.State{}, false
	}
	return th.state.Clone(), true
}

// Len reports the number of log entries and conversation states held.
func (s *Store) Len() (messages, states int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages), len(s.threads)
}
