package careevents

import "strings"

type Category string

const (
	CategoryMedication  Category = "medication"
	CategoryFeeding     Category = "feeding"
	CategoryPottyBreak  Category = "pottybreak"
	CategoryObservation Category = "observation"
)

var knownCategories = map[Category]struct{}{
	CategoryMedication:  {},
	CategoryFeeding:     {},
	CategoryPottyBreak:  {},
	CategoryObservation: {},
}

// ParseCategory normaliza y valida; acepta "potty_break" / "potty-break".
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
	c := Category(s)
	_, ok := knownCategories[c]
	return c, ok
}

func (c Category) Valid() bool {
	_, ok := knownCategories[c]
	return ok
}
