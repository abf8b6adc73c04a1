package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics agrupa los collectors del tracker. Se construye por scope con su
// propio Registerer (no usamos el registry global para poder tener varios
// scopes y tests en paralelo). Todos los métodos aceptan receiver nil.
type Metrics struct {
	QueueDepth   prometheus.Gauge
	QueueOps     *prometheus.CounterVec // result: ok|error|panic
	CacheFetches *prometheus.CounterVec // result: ok|error|aborted|cached|joined
	CacheEntries prometheus.Gauge
	GuardEvents  *prometheus.CounterVec // outcome: accepted|blocked|notice
	Rollovers    prometheus.Counter
	Notices      *prometheus.CounterVec // class, delivered: true|false
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "petcare_queue_depth",
			Help: "Pending operations in the write queue",
		}),
		QueueOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "petcare_queue_operations_total",
			Help: "Executed queue operations by result",
		}, []string{"result"}),
		CacheFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "petcare_slotcache_refresh_total",
			Help: "Time-slot cache refresh calls by result",
		}, []string{"result"}),
		CacheEntries: f.NewGauge(prometheus.GaugeOpts{
			Name: "petcare_slotcache_entries",
			Help: "Entries in the current time-slot snapshot",
		}),
		GuardEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "petcare_inputguard_events_total",
			Help: "Input guard decisions by outcome",
		}, []string{"outcome"}),
		Rollovers: f.NewCounter(prometheus.CounterOpts{
			Name: "petcare_rollovers_total",
			Help: "Midnight rollovers fired",
		}),
		Notices: f.NewCounterVec(prometheus.CounterOpts{
			Name: "petcare_notices_total",
			Help: "User notices by class and whether they were delivered or deduplicated",
		}, []string{"class", "delivered"}),
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) QueueOp(result string) {
	if m == nil {
		return
	}
	m.QueueOps.WithLabelValues(result).Inc()
}

func (m *Metrics) CacheFetch(result string) {
	if m == nil {
		return
	}
	m.CacheFetches.WithLabelValues(result).Inc()
}

func (m *Metrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(n))
}

func (m *Metrics) Guard(outcome string) {
	if m == nil {
		return
	}
	m.GuardEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Rollover() {
	if m == nil {
		return
	}
	m.Rollovers.Inc()
}

func (m *Metrics) Notice(class string, delivered bool) {
	if m == nil {
		return
	}
	d := "false"
	if delivered {
		d = "true"
	}
	m.Notices.WithLabelValues(class, d).Inc()
}
