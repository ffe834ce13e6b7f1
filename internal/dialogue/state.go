package dialogue

import (
	"maps"
	"slices"
	"time"
)

// maxSignatures bounds State.LastSignatures.
const maxSignatures = 4

// Rand is the randomness source used for response variety and ticket
// suffixes. *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// Control holds dialogue bookkeeping that must not live among domain slots.
type Control struct {
	// Expect is the slot most recently solicited for the stored intent.
	Expect Slot `json:"expect,omitempty"`
	// AskedBudget is set the first time a purchase asks for a budget and
	// is never cleared for the lifetime of the state.
	AskedBudget bool `json:"asked_budget,omitempty"`
}

// State is the per-thread conversation state.
type State struct {
	Intent         Intent    `json:"intent,omitempty"`
	User           string    `json:"user"`
	Slots          Slots     `json:"slots"`
	Control        Control   `json:"control"`
	Ticket         string    `json:"ticket,omitempty"`
	LastSeen       time.Time `json:"last_seen"`
	LastSignatures []string  `json:"last_signatures"`
}

// NewState returns an empty state owned by user.
func NewState(user string) *State {
	return &State{
		User:  user,
		Slots: Slots{},
	}
}

// Clone returns a deep copy that shares no mutable memory with s.
func (s *State) Clone() State {
	out := *s
	out.Slots = maps.Clone(s.Slots)
	if out.Slots == nil {
		out.Slots = Slots{}
	}
	out.LastSignatures = slices.Clone(s.LastSignatures)
	return out
}

func (s *State) lastSignature() string {
	if len(s.LastSignatures) == 0 {
		return ""
	}
	return s.LastSignatures[len(s.LastSignatures)-1]
}

func (s *State) rememberSignature(sig string) {
	s.LastSignatures = append(s.LastSignatures, sig)
	if n := len(s.LastSignatures); n > maxSignatures {
		s.LastSignatures = slices.Clone(s.LastSignatures[n-maxSignatures:])
	}
}
