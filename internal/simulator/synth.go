// Package simulator produces demo inbound traffic that reads like real
// customers: it either continues an open conversation with a plausible
// answer to the pending question or opens a new one from a seed phrase.
package simulator

import (
	"errors"
	"slices"

	"oneinbox/internal/dialogue"
	"oneinbox/internal/domain"
)

// ThreadLister reports the open threads of a platform.
// *inbox.Store satisfies it.
type ThreadLister interface {
	Threads(platform domain.Platform) []domain.ThreadSummary
}

// Config sets the population the synthesizer draws from.
type Config struct {
	Platforms []domain.Platform
	Users     []string
	Seeds     []string
	// ContinueRate is the probability of continuing an existing thread
	// when the platform has one.
	ContinueRate float64
}

// Inbound is one synthesized customer message.
type Inbound struct {
	Platform domain.Platform
	User     string
	Text     string
}

type answerKey struct {
	intent dialogue.Intent
	expect dialogue.Slot
}

var answers = map[answerKey][]string{
	{dialogue.Login, dialogue.SlotIssue}:     {"Olvidé mi contraseña", "No me llega el código", "Cuenta bloqueada"},
	{dialogue.Login, dialogue.SlotAccount}:   {"usuario@email.com", "mi correo es usuario@email.com"},
	{dialogue.Payment, dialogue.SlotCase}:    {"Es un cobro no reconocido", "Me cobraron dos veces", "Quiero reembolso"},
	{dialogue.Payment, dialogue.SlotAmount}:  {"25 USD", "80.000 GS", "50 USD"},
	{dialogue.Purchase, dialogue.SlotItem}:   {"remeras", "jeans", "buzos", "zapatillas", "mochilas"},
	{dialogue.Purchase, dialogue.SlotRefine}: {"remeras", "jeans", "buzos", "zapatillas", "mochilas"},
	{dialogue.Purchase, dialogue.SlotSize}:   {"Talle M", "Talle L", "Número 42"},
	{dialogue.Purchase, dialogue.SlotBudget}: {"50 USD", "100 USD", "200.000 GS"},
	{dialogue.Status, dialogue.SlotRef}:      {"48219", "93012", "55107"},
	{dialogue.Update, dialogue.SlotField}:    {"Correo", "Teléfono", "Dirección"},
	{dialogue.Update, dialogue.SlotValue}:    {"nuevo@email.com", "0981 123 456"},
	{dialogue.Issue, dialogue.SlotDetails}:   {"Me aparece error 403", "Se queda cargando y no avanza", "Se cierra sola al abrir"},
}

// Synthesizer is not safe for concurrent use unless its Rand is.
type Synthesizer struct {
	threads ThreadLister
	rng     dialogue.Rand
	cfg     Config
}

func New(threads ThreadLister, rng dialogue.Rand, cfg Config) (*Synthesizer, error) {
	if threads == nil {
		return nil, errors.New("simulator: thread lister must not be nil")
	}
	if rng == nil {
		return nil, errors.New("simulator: rand source must not be nil")
	}
	if len(cfg.Platforms) == 0 {
		return nil, errors.New("simulator: at least one platform is required")
	}
	if len(cfg.Users) == 0 || len(cfg.Seeds) == 0 {
		return nil, errors.New("simulator: users and seeds must not be empty")
	}
	if cfg.ContinueRate < 0 || cfg.ContinueRate > 1 {
		return nil, errors.New("simulator: continue rate must be within [0,1]")
	}
	return &Synthesizer{threads: threads, rng: rng, cfg: cfg}, nil
}

// Next returns the next inbound message. hint selects the platform when it
// is one of the configured platforms; otherwise a random one is used.
func (s *Synthesizer) Next(hint domain.Platform) Inbound {
	platform := hint
	if !slices.Contains(s.cfg.Platforms, platform) {
		platform = pick(s.rng, s.cfg.Platforms)
	}

	if open := s.threads.Threads(platform); len(open) > 0 && s.rng.Float64() < s.cfg.ContinueRate {
		th := pick(s.rng, open)
		return Inbound{Platform: platform, User: th.User, Text: s.Answer(th)}
	}
	return Inbound{Platform: platform, User: pick(s.rng, s.cfg.Users), Text: pick(s.rng, s.cfg.Seeds)}
}

// Answer returns a scripted reply to the question th is waiting on, or a
// seed phrase when nothing is pending.
func (s *Synthesizer) Answer(th domain.ThreadSummary) string {
	key := answerKey{intent: dialogue.Intent(th.Intent), expect: dialogue.Slot(th.Expect)}
	if pool, ok := answers[key]; ok {
		return pick(s.rng, pool)
	}
	return pick(s.rng, s.cfg.Seeds)
}

func pick[T any](rng dialogue.Rand, from []T) T {
	return from[rng.IntN(len(from))]
}
