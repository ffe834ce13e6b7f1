package dialogue

import (
	"fmt"
	"strings"
)

// DefaultTicketPrefix prefixes ticket ids when none is configured.
const DefaultTicketPrefix = "OIB"

// TicketAllocator hands out one reference id per conversation state.
type TicketAllocator struct {
	rng    Rand
	prefix string
}

// NewTicketAllocator returns an allocator drawing suffixes from rng.
func NewTicketAllocator(rng Rand, prefix string) TicketAllocator {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultTicketPrefix
	}
	return TicketAllocator{rng: rng, prefix: prefix}
}

// Ticket returns the ticket of st, generating and storing it on first use.
func (a TicketAllocator) Ticket(st *State) string {
	if st.Ticket == "" {
		st.Ticket = fmt.Sprintf("%s-%d", a.prefix, 10000+a.rng.IntN(90000))
	}
	return st.Ticket
}
