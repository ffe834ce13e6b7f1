package dialogue

import (
	"fmt"
	"strings"
)

var (
	greetPool = []string{
		"¡Hola! ¿En qué puedo ayudarte?",
		"¡Buenas! ¿Qué necesitás resolver?",
		"Hola 👋 ¿Compras, pagos, acceso o seguimiento?",
	}
	greetFollowUps = []string{
		"Si me decís el tema, avanzamos rápido.",
		"Contame qué querés hacer y te indico el siguiente paso.",
	}
	thanksPool = []string{
		"Perfecto. ¿Necesitás algo más?",
		"Genial, gracias. ¿Vemos algo más?",
	}
	ambigPool = []string{
		"¿Podés ampliar en una línea qué necesitás?",
		"¿Me das un poco más de contexto?",
	}
	finalizeLeads = []string{"Listo.", "Hecho.", "Perfecto, ya está."}
	statusLabels  = []string{"en revisión", "pendiente", "resuelto"}
)

var askPools = map[Slot][]string{
	SlotIssue:   {"¿Es por contraseña, código o bloqueo?"},
	SlotAccount: {"¿Qué correo/usuario usás para ingresar?", "¿Con qué correo te registraste?"},
	SlotCase:    {"¿Es cobro no reconocido, duplicado o reembolso?"},
	SlotAmount:  {"¿Me confirmás el monto y la moneda (USD/GS)?", "¿De qué monto y moneda (USD/GS) hablamos?"},
	SlotItem:    {"¿Qué producto buscás (remera, jeans, zapatillas, mochila, etc.)?"},
	SlotRefine:  {"Perfecto. ¿Qué exactamente (remeras, jeans, buzos, zapatillas, mochilas)?"},
	SlotSize:    {"¿Qué talle/número necesitás?", "¿En qué talle o número lo buscás?"},
	SlotBudget:  {"¿Tenés un presupuesto aproximado?"},
	SlotRef:     {"¿Tenés un número de caso o referencia?"},
	SlotField:   {"¿Qué dato querés actualizar (correo, teléfono, dirección o nombre)?"},
	SlotValue:   {"¿Cuál es el valor nuevo?"},
	SlotDetails: {"Entendido. ¿Qué error te aparece o qué paso estabas haciendo?"},
}

func askPool(slot Slot) []string {
	if pool, ok := askPools[slot]; ok {
		return pool
	}
	return askPools[SlotDetails]
}

// Signatures tag the kind of reply for anti-repetition.
const (
	sigGreet  = "greet"
	sigThanks = "thanks"
	sigAmbig  = "ambig"
)

func askSignature(slot Slot) string     { return "ask:" + string(slot) }
func finalizeSignature(i Intent) string { return "finalize:" + string(i) }

// Select draws a phrase from pool for st. When the previous reply of st had
// the same signature, the first phrase of the pool is left out of the draw
// so the same situation is not answered with the same opening twice in a
// row. The signature is always recorded.
func Select(rng Rand, pool []string, st *State, signature string) string {
	if len(pool) == 0 {
		return ""
	}
	candidates := pool
	if st.lastSignature() == signature && len(pool) > 1 {
		candidates = pool[1:]
	}
	out := candidates[rng.IntN(len(candidates))]
	st.rememberSignature(signature)
	return out
}

// summary renders the intent-specific part of a finalize reply.
func summary(rng Rand, intent Intent, slots Slots) string {
	switch intent {
	case Login:
		acc := slots[SlotAccount]
		switch slots[SlotIssue] {
		case "contraseña":
			return fmt.Sprintf("Recuperación iniciada para %s.", acc)
		case "código":
			return fmt.Sprintf("Reenvío de código solicitado para %s.", acc)
		case "bloqueo":
			return fmt.Sprintf("Solicitud de desbloqueo registrada para %s.", acc)
		}
		return "Caso de acceso registrado."

	case Payment:
		label := "pago"
		if c := slots[SlotCase]; c != "" {
			label = strings.ReplaceAll(c, "_", " ")
		}
		if amt := slots[SlotAmount]; amt != "" {
			label += " por " + amt
		}
		return fmt.Sprintf("Caso registrado (%s).", label)

	case Purchase:
		parts := []string{"compra"}
		if it := slots[SlotItem]; it != "" {
			parts[0] = it
		}
		for _, s := range []Slot{SlotSize, SlotBudget} {
			if v := slots[s]; v != "" {
				parts = append(parts, v)
			}
		}
		return fmt.Sprintf("Solicitud registrada (%s).", strings.Join(parts, ", "))

	case Status:
		return fmt.Sprintf("El estado figura como “%s”.", statusLabels[rng.IntN(len(statusLabels))])

	case Update:
		field := slots[SlotField]
		if field == "" {
			field = "dato"
		}
		return fmt.Sprintf("Cambio solicitado (%s) registrado.", field)

	case Issue:
		return "Incidente registrado."
	}
	return "Solicitud registrada."
}
