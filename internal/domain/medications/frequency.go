package medications

import (
	"strings"
	"time"
)

// Frequency es la unidad de recurrencia de una medicación. No se persiste
// como agenda: el estado se recalcula siempre desde el último registro, así
// que cambiar la frecuencia reclasifica el historial (comportamiento esperado).
type Frequency string

const (
	FrequencyDaily      Frequency = "daily"
	FrequencyTwiceDaily Frequency = "twice_daily"
	FrequencyWeekly     Frequency = "weekly"
	FrequencyBiweekly   Frequency = "biweekly"
	FrequencyMonthly    Frequency = "monthly"
	FrequencyQuarterly  Frequency = "quarterly"
	FrequencyAnnual     Frequency = "annual"
	FrequencyAsNeeded   Frequency = "as_needed"
)

const day = 24 * time.Hour

var intervals = map[Frequency]time.Duration{
	FrequencyDaily:      day,
	FrequencyTwiceDaily: 12 * time.Hour,
	FrequencyWeekly:     7 * day,
	FrequencyBiweekly:   14 * day,
	FrequencyMonthly:    30 * day,
	FrequencyQuarterly:  90 * day,
	FrequencyAnnual:     365 * day,
}

var aliases = map[string]Frequency{
	"daily":       FrequencyDaily,
	"once_daily":  FrequencyDaily,
	"sid":         FrequencyDaily,
	"24h":         FrequencyDaily,
	"diario":      FrequencyDaily,
	"twice_daily": FrequencyTwiceDaily,
	"twicedaily":  FrequencyTwiceDaily,
	"bid":         FrequencyTwiceDaily,
	"12h":         FrequencyTwiceDaily,
	"every_12h":   FrequencyTwiceDaily,
	"cada_12h":    FrequencyTwiceDaily,
	"weekly":      FrequencyWeekly,
	"semanal":     FrequencyWeekly,
	"biweekly":    FrequencyBiweekly,
	"quincenal":   FrequencyBiweekly,
	"monthly":     FrequencyMonthly,
	"mensual":     FrequencyMonthly,
	"quarterly":   FrequencyQuarterly,
	"trimestral":  FrequencyQuarterly,
	"annual":      FrequencyAnnual,
	"yearly":      FrequencyAnnual,
	"anual":       FrequencyAnnual,
	"as_needed":   FrequencyAsNeeded,
	"asneeded":    FrequencyAsNeeded,
	"prn":         FrequencyAsNeeded,
}

// ParseFrequency acepta el nombre canónico y algunos alias ("bid", "cada 12h", "mensual").
func ParseFrequency(s string) (Frequency, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	f, ok := aliases[s]
	return f, ok
}

// Interval devuelve el intervalo canónico; false para as_needed o desconocida.
func (f Frequency) Interval() (time.Duration, bool) {
	d, ok := intervals[f]
	return d, ok
}

// NextDueDate suma el intervalo canónico a last. nil si last es nil o si la
// frecuencia no tiene fecha de vencimiento (as_needed).
func NextDueDate(last *time.Time, f Frequency) *time.Time {
	if last == nil {
		return nil
	}
	d, ok := f.Interval()
	if !ok {
		return nil
	}
	next := last.Add(d)
	return &next
}

// SlotsPerDay es informativo (para que la UI arme los casilleros del día).
func SlotsPerDay(f Frequency) int {
	if f == FrequencyTwiceDaily {
		return 2
	}
	return 1
}
