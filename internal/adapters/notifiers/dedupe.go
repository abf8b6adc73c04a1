package notifiers

import (
	"context"
	"strings"
	"time"

	"pet-care-tracker/internal/platform/metrics"
	"pet-care-tracker/internal/ports/notify"

	"github.com/patrickmn/go-cache"
)

const DefaultDedupWindow = 10 * time.Second

// Deduper deja pasar un aviso por clase cada window; el resto se descarta.
type Deduper struct {
	next    notify.Notifier
	window  time.Duration
	seen    *cache.Cache
	metrics *metrics.Metrics
}

func NewDeduper(next notify.Notifier, window time.Duration, m *metrics.Metrics) *Deduper {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Deduper{
		next:    next,
		window:  window,
		seen:    cache.New(window, 2*window),
		metrics: m,
	}
}

func dedupKey(x notify.Notice) string {
	if c := strings.TrimSpace(x.Class); c != "" {
		return c
	}
	return string(x.Severity) + "|" + x.Title
}

func (d *Deduper) Notify(ctx context.Context, x notify.Notice) {
	key := dedupKey(x)
	// Add falla si la key sigue viva: eso es el dedupe
	if err := d.seen.Add(key, struct{}{}, d.window); err != nil {
		d.metrics.Notice(key, false)
		return
	}
	d.metrics.Notice(key, true)
	d.next.Notify(ctx, x)
}

// Forget habilita de nuevo la clase (p.ej. tras un cambio de categoría).
func (d *Deduper) Forget(class string) {
	d.seen.Delete(class)
}
