package dialogue

import (
	"math/rand/v2"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fixedRand always draws n (modulo the bound) and f.
type fixedRand struct {
	n int
	f float64
}

func (r fixedRand) IntN(n int) int   { return r.n % n }
func (r fixedRand) Float64() float64 { return r.f }

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

var ticketRe = regexp.MustCompile(`^OIB-\d{5}$`)

func TestSelect_ExcludesFirstOnRepeatedSignature(t *testing.T) {
	pool := []string{"a", "b", "c"}
	st := NewState("ana")
	st.LastSignatures = []string{"ask:size"}
	rng := seeded(7)

	for i := 0; i < 200; i++ {
		require.NotEqual(t, "a", Select(rng, pool, st, "ask:size"))
	}
}

func TestSelect_FullPoolOnNewSignature(t *testing.T) {
	pool := []string{"a", "b", "c"}
	rng := seeded(11)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		st := NewState("ana")
		st.LastSignatures = []string{"greet"}
		seen[Select(rng, pool, st, "ask:size")] = true
	}
	require.Len(t, seen, 3)
}

func TestSelect_SingleCandidatePoolRepeats(t *testing.T) {
	st := NewState("ana")
	st.LastSignatures = []string{"ask:budget"}
	require.Equal(t, "only", Select(fixedRand{}, []string{"only"}, st, "ask:budget"))
}

func TestSelect_OnlyPositionZeroExcluded(t *testing.T) {
	st := NewState("ana")
	pool := []string{"a", "b", "c"}

	require.Equal(t, "a", Select(fixedRand{n: 0}, pool, st, "thanks"))
	require.Equal(t, "b", Select(fixedRand{n: 0}, pool, st, "thanks"))
	// The literal last phrase may repeat; only the pool's first slot is excluded.
	require.Equal(t, "b", Select(fixedRand{n: 0}, pool, st, "thanks"))
}

func TestSelect_SignatureHistoryBounded(t *testing.T) {
	st := NewState("ana")
	for _, sig := range []string{"s1", "s2", "s3", "s4", "s5", "s6"} {
		Select(fixedRand{}, []string{"x"}, st, sig)
	}
	require.Equal(t, []string{"s3", "s4", "s5", "s6"}, st.LastSignatures)
}

func TestSelect_EmptyPool(t *testing.T) {
	st := NewState("ana")
	require.Empty(t, Select(fixedRand{}, nil, st, "x"))
	require.Empty(t, st.LastSignatures)
}

func TestTicket_StableAndFormatted(t *testing.T) {
	alloc := NewTicketAllocator(seeded(3), "")
	st := NewState("ana")

	first := alloc.Ticket(st)
	require.Regexp(t, ticketRe, first)
	require.Equal(t, first, alloc.Ticket(st))
	require.Equal(t, first, st.Ticket)
}

func TestTicket_Bounds(t *testing.T) {
	require.Equal(t, "OIB-10000", NewTicketAllocator(fixedRand{n: 0}, "OIB").Ticket(NewState("a")))
	require.Equal(t, "OIB-99999", NewTicketAllocator(fixedRand{n: 89999}, "OIB").Ticket(NewState("a")))
	require.Equal(t, "INB-12345", NewTicketAllocator(fixedRand{n: 2345}, " INB ").Ticket(NewState("a")))
}

func TestSummary_Purchase(t *testing.T) {
	got := summary(fixedRand{}, Purchase, Slots{SlotItem: "zapatillas", SlotSize: "42", SlotBudget: "50 USD"})
	require.Equal(t, "Solicitud registrada (zapatillas, 42, 50 USD).", got)

	got = summary(fixedRand{}, Purchase, Slots{SlotItem: "mochilas"})
	require.Equal(t, "Solicitud registrada (mochilas).", got)
}

func TestSummary_PerIntent(t *testing.T) {
	require.Equal(t, "Recuperación iniciada para a@b.co.", summary(fixedRand{}, Login, Slots{SlotIssue: "contraseña", SlotAccount: "a@b.co"}))
	require.Equal(t, "Caso registrado (no reconocido por 25 USD).", summary(fixedRand{}, Payment, Slots{SlotCase: "no_reconocido", SlotAmount: "25 USD"}))
	require.Equal(t, "El estado figura como “pendiente”.", summary(fixedRand{n: 1}, Status, Slots{SlotRef: "1234"}))
	require.Equal(t, "Cambio solicitado (correo) registrado.", summary(fixedRand{}, Update, Slots{SlotField: "correo"}))
	require.Equal(t, "Incidente registrado.", summary(fixedRand{}, Issue, Slots{SlotDetails: "ok"}))
	require.Equal(t, "Solicitud registrada.", summary(fixedRand{}, General, Slots{}))
}

func TestFinalizeLeads_DoNotRepeatSummaryVerb(t *testing.T) {
	for _, lead := range finalizeLeads {
		require.NotContains(t, strings.ToLower(lead), "registr", "lead=%q", lead)
	}
}
