package dialogue

import "slices"

var (
	loginIssuesNeedingAccount = []string{"contraseña", "código", "bloqueo"}
	coarseCategories          = []string{"ropa", "calzado", "accesorios"}
	sizedCategories           = []string{"zapatillas", "remeras", "jeans", "buzos"}
)

// NextMissing returns the first unmet requirement for intent given the
// slots collected so far. ok is false once the request can be finalized.
// Every call re-evaluates from scratch, so answers may arrive in any order.
func NextMissing(intent Intent, slots Slots, ctl Control) (missing Slot, ok bool) {
	switch intent {
	case Login:
		if !slots.Has(SlotIssue) {
			return SlotIssue, true
		}
		if slices.Contains(loginIssuesNeedingAccount, slots[SlotIssue]) && !slots.Has(SlotAccount) {
			return SlotAccount, true
		}

	case Payment:
		if !slots.Has(SlotCase) {
			return SlotCase, true
		}
		if !slots.Has(SlotAmount) {
			return SlotAmount, true
		}

	case Purchase:
		item := slots[SlotItem]
		if item == "" {
			return SlotItem, true
		}
		if slices.Contains(coarseCategories, item) {
			return SlotRefine, true
		}
		if slices.Contains(sizedCategories, item) && !slots.Has(SlotSize) {
			return SlotSize, true
		}
		// The budget is optional: ask once, never again.
		if !slots.Has(SlotBudget) && !ctl.AskedBudget {
			return SlotBudget, true
		}

	case Status:
		if !slots.Has(SlotRef) {
			return SlotRef, true
		}

	case Update:
		if !slots.Has(SlotField) {
			return SlotField, true
		}
		if !slots.Has(SlotValue) {
			return SlotValue, true
		}

	case Issue:
		if !slots.Has(SlotDetails) {
			return SlotDetails, true
		}
	}
	return "", false
}
