package usecase

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"oneinbox/internal/domain"
	"oneinbox/internal/inbox"
	"oneinbox/internal/simulator"
)

const defaultMaxText = 1000

// Recorder runs turns through the conversation store.
// *inbox.Store satisfies it.
type Recorder interface {
	RecordTurn(platform domain.Platform, user, text string) inbox.Exchange
	Messages() []domain.Message
	Reset()
}

// Archiver persists recorded turns.
type Archiver interface {
	SaveTurn(ctx context.Context, turn domain.ArchivedTurn) error
}

// Deliverer pushes a system reply out to the customer's platform.
type Deliverer interface {
	Deliver(ctx context.Context, msg domain.Message) error
}

// Synthesizer produces demo inbound messages.
type Synthesizer interface {
	Next(hint domain.Platform) simulator.Inbound
}

// InboxConfig holds the request-level rules of InboxService.
type InboxConfig struct {
	Platforms       []domain.Platform
	DefaultPlatform domain.Platform
	MaxTextLength   int
}

type InboxOption func(*InboxService)

func WithArchiver(a Archiver) InboxOption {
	return func(s *InboxService) { s.archive = a }
}

// WithDeliverer adds an outbound channel; replies go to every channel in
// the order they were added.
func WithDeliverer(d Deliverer) InboxOption {
	return func(s *InboxService) {
		if d != nil {
			s.deliver = append(s.deliver, d)
		}
	}
}

func WithSynthesizer(g Synthesizer) InboxOption {
	return func(s *InboxService) { s.synth = g }
}

func WithLogger(l *slog.Logger) InboxOption {
	return func(s *InboxService) {
		if l != nil {
			s.log = l
		}
	}
}

// InboxService is the entry point shared by every transport.
type InboxService struct {
	store   Recorder
	cfg     InboxConfig
	archive Archiver
	deliver []Deliverer
	synth   Synthesizer
	log     *slog.Logger
}

type SendInput struct {
	Platform string
	User     string
	Text     string
}

func NewInboxService(store Recorder, cfg InboxConfig, opts ...InboxOption) (*InboxService, error) {
	if store == nil {
		return nil, errors.New("usecase: store must not be nil")
	}
	if len(cfg.Platforms) == 0 {
		return nil, errors.New("usecase: at least one platform is required")
	}
	if cfg.DefaultPlatform == "" {
		cfg.DefaultPlatform = cfg.Platforms[0]
	}
	if !slices.Contains(cfg.Platforms, cfg.DefaultPlatform) {
		return nil, errors.New("usecase: default platform must be one of the platforms")
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = defaultMaxText
	}
	s := &InboxService{store: store, cfg: cfg, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Platform maps a raw platform name onto a configured platform, falling
// back to the default platform.
func (s *InboxService) Platform(raw string) domain.Platform {
	if p, ok := s.knownPlatform(raw); ok {
		return p
	}
	return s.cfg.DefaultPlatform
}

func (s *InboxService) knownPlatform(raw string) (domain.Platform, bool) {
	p := domain.Platform(strings.ToLower(strings.TrimSpace(raw)))
	return p, slices.Contains(s.cfg.Platforms, p)
}

// Send records one customer message and returns it with the reply.
func (s *InboxService) Send(ctx context.Context, in SendInput) ([]domain.Message, error) {
	text := strings.TrimSpace(in.Text)
	if utf8.RuneCountInString(text) > s.cfg.MaxTextLength {
		return nil, newError(ErrorInvalidInput, "text_too_long", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, newError(ErrorUnavailable, "request_cancelled", err)
	}
	return s.record(ctx, s.Platform(in.Platform), in.User, text), nil
}

// Generate records one synthesized customer message. An unknown platform
// hint lets the synthesizer choose.
func (s *InboxService) Generate(ctx context.Context, platformHint string) ([]domain.Message, error) {
	if s.synth == nil {
		return nil, newError(ErrorUnavailable, "simulator_disabled", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, newError(ErrorUnavailable, "request_cancelled", err)
	}
	hint, _ := s.knownPlatform(platformHint)
	in := s.synth.Next(hint)
	return s.record(ctx, in.Platform, in.User, in.Text), nil
}

// Messages returns the message log, oldest first.
func (s *InboxService) Messages(_ context.Context) []domain.Message {
	return s.store.Messages()
}

// Clear drops every conversation and message.
func (s *InboxService) Clear(_ context.Context) {
	s.store.Reset()
	s.log.Info("usecase: inbox cleared")
}

func (s *InboxService) record(ctx context.Context, platform domain.Platform, user, text string) []domain.Message {
	ex := s.store.RecordTurn(platform, user, text)
	log := s.log.With("thread_id", ex.Inbound.ThreadID)

	if s.archive != nil {
		turn := domain.ArchivedTurn{
			Inbound: ex.Inbound,
			Reply:   ex.Reply,
			Intent:  string(ex.Turn.Intent),
			Ticket:  ex.Turn.Ticket,
		}
		if err := s.archive.SaveTurn(ctx, turn); err != nil {
			log.Warn("usecase: archive turn failed", "err", err)
		}
	}
	for _, d := range s.deliver {
		if err := d.Deliver(ctx, ex.Reply); err != nil {
			log.Warn("usecase: deliver reply failed", "err", err)
		}
	}
	if ex.Turn.Finalized {
		log.Info("usecase: request finalized", "intent", ex.Turn.Intent, "ticket", ex.Turn.Ticket)
	}
	return []domain.Message{ex.Inbound, ex.Reply}
}
