package slotcache

import (
	"strings"
	"time"

	"pet-care-tracker/internal/domain/careevents"
)

const (
	SlotMorning = "morning"
	SlotNoon    = "noon"
	SlotEvening = "evening"
)

// SlotForHour: mañana [5,10), mediodía [10,15), noche el resto (incluye la madrugada).
func SlotForHour(hour int) string {
	switch {
	case hour >= 5 && hour < 10:
		return SlotMorning
	case hour >= 10 && hour < 15:
		return SlotNoon
	default:
		return SlotEvening
	}
}

// SlotHour devuelve la hora representativa de un slot horario.
func SlotHour(slot string) (int, bool) {
	switch NormalizeSlot(slot) {
	case SlotMorning:
		return 8, true
	case SlotNoon:
		return 12, true
	case SlotEvening:
		return 18, true
	default:
		return 0, false
	}
}

func IsHourSlot(slot string) bool {
	_, ok := SlotHour(slot)
	return ok
}

func NormalizeSlot(slot string) string {
	return strings.ToLower(strings.TrimSpace(slot))
}

// SlotResolver decide a qué slot pertenece un registro. Las categorías
// "por label" usan el label (p.ej. el nombre de la medicación); el resto se
// ubica por la hora local del evento.
type SlotResolver struct {
	labelBased map[careevents.Category]bool
}

func NewSlotResolver(labelBased ...careevents.Category) SlotResolver {
	m := make(map[careevents.Category]bool, len(labelBased))
	for _, c := range labelBased {
		m[c] = true
	}
	return SlotResolver{labelBased: m}
}

// DefaultSlotResolver: medication por label, el resto por hora.
func DefaultSlotResolver() SlotResolver {
	return NewSlotResolver(careevents.CategoryMedication)
}

func (r SlotResolver) IsLabelBased(c careevents.Category) bool {
	return r.labelBased[c]
}

func (r SlotResolver) Resolve(e careevents.CareEvent, loc *time.Location) string {
	if r.IsLabelBased(e.Category) {
		return NormalizeSlot(e.Label)
	}
	if loc == nil {
		loc = time.Local
	}
	return SlotForHour(e.OccurredAt.In(loc).Hour())
}
