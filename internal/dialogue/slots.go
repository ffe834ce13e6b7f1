package dialogue

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// Slot names a piece of information a request needs before it can be
// finalized.
type Slot string

const (
	SlotItem    Slot = "item"
	SlotRefine  Slot = "refine"
	SlotSize    Slot = "size"
	SlotBudget  Slot = "budget"
	SlotCase    Slot = "case"
	SlotAmount  Slot = "amount"
	SlotIssue   Slot = "issue"
	SlotAccount Slot = "account"
	SlotRef     Slot = "ref"
	SlotField   Slot = "field"
	SlotValue   Slot = "value"
	SlotDetails Slot = "details"
)

// Slots maps slot names to collected values.
type Slots map[Slot]string

// Has reports whether name holds a non-empty value.
func (s Slots) Has(name Slot) bool {
	return s[name] != ""
}

// merge copies non-empty values from got, replacing same-named slots only.
func (s Slots) merge(got Slots) {
	for k, v := range got {
		if v != "" {
			s[k] = v
		}
	}
}

// allowedSlots is the closed set of domain slots each intent may carry.
var allowedSlots = map[Intent][]Slot{
	Purchase: {SlotItem, SlotSize, SlotBudget},
	Payment:  {SlotCase, SlotAmount},
	Login:    {SlotIssue, SlotAccount},
	Status:   {SlotRef},
	Update:   {SlotField, SlotValue},
	Issue:    {SlotDetails},
}

// itemCategory maps a catalog category to the words that select it. The
// table is scanned in order and the first hit wins.
type itemCategory struct {
	name  string
	words []string
}

var itemCategories = []itemCategory{
	{"remeras", []string{"remera", "remeras", "camiseta", "tshirt", "t-shirt"}},
	{"jeans", []string{"jean", "jeans", "pantalon", "pantalones"}},
	{"buzos", []string{"buzo", "hoodie", "campera", "sweater"}},
	{"zapatillas", []string{"zapatilla", "zapatillas", "zapato", "zapatos", "calzado"}},
	{"mochilas", []string{"mochila", "bolso", "cartera"}},
	{"ropa", []string{"ropa", "prenda", "prendas"}},
	{"calzado", []string{"calzado", "zapatos", "zapatillas"}},
	{"accesorios", []string{"accesorio", "accesorios", "mochila", "bolso", "cartera"}},
}

var (
	emailRe    = regexp.MustCompile(`([a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,})`)
	sizeRe     = regexp.MustCompile(`\b(?:talle|size|numero)\s*[:\-]?\s*(xxs|xs|s|m|l|xl|xxl|xxxl|\d{1,3})\b`)
	bareSizeRe = regexp.MustCompile(`^(xxs|xs|s|m|l|xl|xxl|xxxl|\d{1,3})$`)
	budgetRe   = regexp.MustCompile(`(\$|usd|usdt|gs|₲)\s*([\d.]{1,10})|([\d.]{1,10})\s*(usd|usdt|gs)`)
	amountRe   = regexp.MustCompile(`\b([\d.]{1,10})\s*(usd|usdt|gs)\b`)
	refRe      = regexp.MustCompile(`\b(\d{4,})\b`)
)

// minDetailsLen is the rune count from which an issue description counts
// as details.
const minDetailsLen = 6

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// Extract pulls the slots intent cares about out of normalized text. Slots
// not found are absent from the result; the result only ever holds slots
// allowed for intent.
func Extract(intent Intent, text string) Slots {
	out := Slots{}

	switch intent {
	case Purchase:
		for _, cat := range itemCategories {
			if containsAny(text, cat.words...) {
				out[SlotItem] = cat.name
				break
			}
		}
		if m := sizeRe.FindStringSubmatch(text); m != nil {
			out[SlotSize] = strings.ToUpper(m[1])
		}
		if m := budgetRe.FindString(text); m != "" {
			out[SlotBudget] = strings.ToUpper(strings.TrimSpace(m))
		}

	case Payment:
		switch {
		case strings.Contains(text, "no reconozco"):
			out[SlotCase] = "no_reconocido"
		case containsAny(text, "dos veces", "duplic"):
			out[SlotCase] = "duplicado"
		case containsAny(text, "reembolso", "reintegro"):
			out[SlotCase] = "reembolso"
		}
		if m := amountRe.FindStringSubmatch(text); m != nil {
			out[SlotAmount] = fmt.Sprintf("%s %s", m[1], strings.ToUpper(m[2]))
		}

	case Login:
		switch {
		case containsAny(text, "contrase", "olvid"):
			out[SlotIssue] = "contraseña"
		case strings.Contains(text, "codigo"):
			out[SlotIssue] = "código"
		case strings.Contains(text, "bloque"):
			out[SlotIssue] = "bloqueo"
		}
		if m := emailRe.FindStringSubmatch(text); m != nil {
			out[SlotAccount] = m[1]
		}

	case Status:
		if m := refRe.FindStringSubmatch(text); m != nil {
			out[SlotRef] = m[1]
		}

	case Update:
		switch {
		case containsAny(text, "correo", "email"):
			out[SlotField] = "correo"
		case strings.Contains(text, "telefono"):
			out[SlotField] = "teléfono"
		case strings.Contains(text, "direccion"):
			out[SlotField] = "dirección"
		case strings.Contains(text, "nombre"):
			out[SlotField] = "nombre"
		}
		// The new value is only recognized when it looks like an email,
		// whichever field was named.
		if m := emailRe.FindStringSubmatch(text); m != nil {
			out[SlotValue] = m[1]
		}

	case Issue:
		if utf8.RuneCountInString(text) >= minDetailsLen {
			out[SlotDetails] = "ok"
		}
	}

	return onlyAllowed(intent, out)
}

func onlyAllowed(intent Intent, got Slots) Slots {
	for k := range got {
		if !slices.Contains(allowedSlots[intent], k) {
			delete(got, k)
		}
	}
	return got
}

// extractForTurn is Extract plus answers that only make sense as a reply to
// a specific question: a bare size code is taken as the size only when the
// size was the slot being asked for.
func extractForTurn(intent Intent, text string, expect Slot) Slots {
	got := Extract(intent, text)
	if intent == Purchase && expect == SlotSize && !got.Has(SlotSize) {
		if m := bareSizeRe.FindStringSubmatch(text); m != nil {
			got[SlotSize] = strings.ToUpper(m[1])
		}
	}
	return got
}

// answeredBy returns the slot whose value satisfies an expectation. A
// refine request is satisfied by a new item.
func answeredBy(expect Slot) Slot {
	if expect == SlotRefine {
		return SlotItem
	}
	return expect
}
