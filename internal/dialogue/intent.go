package dialogue

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Intent is the classified purpose of an inbound message.
type Intent string

const (
	Greet    Intent = "greet"
	Thanks   Intent = "thanks"
	Purchase Intent = "purchase"
	Payment  Intent = "payment"
	Login    Intent = "login"
	Status   Intent = "status"
	Issue    Intent = "issue"
	Update   Intent = "update"
	Ambig    Intent = "ambig"
	General  Intent = "general"
)

// ContentIntents lists the intents that collect slots, in keyword-scoring
// priority order: on a score tie the earlier intent wins.
var ContentIntents = []Intent{Purchase, Payment, Login, Status, Issue, Update}

// CollectsSlots reports whether i gathers slots before finalizing.
func (i Intent) CollectsSlots() bool {
	return slices.Contains(ContentIntents, i)
}

// Keyword lists are matched against normalized text, so they carry no
// accents.
var intentKeywords = map[Intent][]string{
	Purchase: {"compr", "precio", "producto", "ropa", "remera", "jean", "pantal", "buzo", "zapat", "mochila", "talle", "color", "envio", "stock"},
	Payment:  {"pago", "cobro", "factura", "tarjeta", "transfer", "reembolso", "reintegro", "monto", "importe", "no reconozco", "dos veces", "duplic"},
	Login:    {"acceso", "entrar", "login", "contrase", "codigo", "bloque", "sesion", "password"},
	Status:   {"estado", "seguim", "novedad", "pendiente", "demora", "tarda", "tramite", "en que quedo"},
	Issue:    {"problema", "error", "no funciona", "fallo", "bug", "se cae", "no me deja"},
	Update:   {"actualiz", "cambiar", "modificar", "datos", "correo", "email", "telefono", "direccion", "nombre"},
}

var greetings = []string{"hola", "holi", "buenas", "buen dia", "hey"}

func isGreeting(text string) bool {
	return slices.Contains(greetings, text) ||
		strings.HasPrefix(text, "hola") ||
		strings.HasPrefix(text, "buenas")
}

func isThanks(text string) bool {
	return strings.HasPrefix(text, "gracias")
}

func isDegenerate(text string) bool {
	if utf8.RuneCountInString(text) < 3 {
		return true
	}
	for _, r := range text {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// Classify maps normalized text to an intent. When st is waiting for a slot
// and text supplies it, the stored intent is kept regardless of wording.
func Classify(text string, st *State) Intent {
	if st != nil && st.Intent != "" && st.Control.Expect != "" {
		got := extractForTurn(st.Intent, text, st.Control.Expect)
		if got[answeredBy(st.Control.Expect)] != "" {
			return st.Intent
		}
	}

	if isGreeting(text) {
		return Greet
	}
	if isThanks(text) {
		return Thanks
	}
	if isDegenerate(text) {
		return Ambig
	}

	best, bestScore := General, 0
	for _, intent := range ContentIntents {
		score := 0
		for _, kw := range intentKeywords[intent] {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = intent, score
		}
	}
	return best
}
