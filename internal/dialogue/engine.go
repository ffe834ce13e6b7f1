// Package dialogue is the rule-based reply engine of the inbox assistant.
//
// One inbound message is one call to Engine.Reply: the text is normalized,
// classified against the stored conversation state, slots are extracted and
// merged, and the engine either asks for the next missing slot or finalizes
// the request with a ticket reference. The engine never fails; empty or
// malformed text is answered with a clarifying prompt.
//
// Engine is not safe for concurrent use. Callers serialize turns.
package dialogue

import (
	"errors"
	"fmt"

	"oneinbox/internal/textnorm"
)

// DefaultGreetFollowUpRate is the probability that a greeting reply gets a
// follow-up sentence appended.
const DefaultGreetFollowUpRate = 0.6

// Turn describes what the engine did with one inbound message.
type Turn struct {
	Intent    Intent
	Reply     string
	Missing   Slot
	Finalized bool
	Ticket    string
}

// Engine produces replies and advances conversation states.
type Engine struct {
	rng          Rand
	tickets      TicketAllocator
	ticketPrefix string
	followUpRate float64
}

type Option func(*Engine)

// WithTicketPrefix sets the prefix of allocated ticket ids.
func WithTicketPrefix(prefix string) Option {
	return func(e *Engine) {
		e.ticketPrefix = prefix
	}
}

// WithGreetFollowUpRate sets the probability in [0,1] of appending a
// follow-up sentence to greetings.
func WithGreetFollowUpRate(rate float64) Option {
	return func(e *Engine) {
		e.followUpRate = rate
	}
}

// NewEngine creates an Engine drawing all randomness from rng.
func NewEngine(rng Rand, opts ...Option) (*Engine, error) {
	if rng == nil {
		return nil, errors.New("dialogue: rand source must not be nil")
	}
	e := &Engine{
		rng:          rng,
		ticketPrefix: DefaultTicketPrefix,
		followUpRate: DefaultGreetFollowUpRate,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.followUpRate < 0 || e.followUpRate > 1 {
		return nil, fmt.Errorf("dialogue: greet follow-up rate %v out of range [0,1]", e.followUpRate)
	}
	e.tickets = NewTicketAllocator(rng, e.ticketPrefix)
	return e, nil
}

// Ticket returns the ticket of st, allocating it on first use.
func (e *Engine) Ticket(st *State) string {
	return e.tickets.Ticket(st)
}

// Reply runs one turn of the dialogue for st and returns the reply.
func (e *Engine) Reply(st *State, text string) Turn {
	if st.Slots == nil {
		st.Slots = Slots{}
	}
	tn := textnorm.Normalize(text)
	intent := Classify(tn, st)

	prev := st.Intent
	switch {
	case intent != Thanks:
		st.Intent = intent
	case st.Intent == "":
		st.Intent = General
	}
	if st.Intent != prev {
		st.Control.Expect = ""
	}

	if st.Intent.CollectsSlots() {
		got := extractForTurn(st.Intent, tn, st.Control.Expect)
		st.Slots.merge(got)
		if exp := st.Control.Expect; exp != "" && got.Has(answeredBy(exp)) {
			st.Control.Expect = ""
		}
	}

	switch intent {
	case Greet:
		return Turn{Intent: intent, Reply: e.greeting(st)}
	case Thanks:
		return Turn{Intent: intent, Reply: Select(e.rng, thanksPool, st, sigThanks)}
	case Ambig:
		return Turn{Intent: intent, Reply: Select(e.rng, ambigPool, st, sigAmbig)}
	}

	if missing, ok := NextMissing(st.Intent, st.Slots, st.Control); ok {
		st.Control.Expect = missing
		if missing == SlotBudget {
			st.Control.AskedBudget = true
		}
		return Turn{
			Intent:  st.Intent,
			Reply:   Select(e.rng, askPool(missing), st, askSignature(missing)),
			Missing: missing,
		}
	}

	ticket := e.Ticket(st)
	lead := Select(e.rng, finalizeLeads, st, finalizeSignature(st.Intent))
	st.Control.Expect = ""
	return Turn{
		Intent:    st.Intent,
		Reply:     fmt.Sprintf("%s %s Ref: %s.", lead, summary(e.rng, st.Intent, st.Slots), ticket),
		Finalized: true,
		Ticket:    ticket,
	}
}

func (e *Engine) greeting(st *State) string {
	out := Select(e.rng, greetPool, st, sigGreet)
	if e.rng.Float64() < e.followUpRate {
		out += " " + greetFollowUps[e.rng.IntN(len(greetFollowUps))]
	}
	return out
}
