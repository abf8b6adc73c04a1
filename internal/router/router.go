package router

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"time"

	"pet-care-tracker/internal/adapters/notifiers"
	"pet-care-tracker/internal/adapters/realtime"
	mem "pet-care-tracker/internal/adapters/storage/memory"
	pg "pet-care-tracker/internal/adapters/storage/postgres"
	"pet-care-tracker/internal/config"
	"pet-care-tracker/internal/domain/careevents"
	"pet-care-tracker/internal/domain/medications"
	"pet-care-tracker/internal/domain/subjects"
	"pet-care-tracker/internal/middleware"
	"pet-care-tracker/internal/platform/logger"
	"pet-care-tracker/internal/platform/metrics"
	"pet-care-tracker/internal/ports/auth"
	"pet-care-tracker/internal/ports/notify"
	"pet-care-tracker/internal/tracker/coordinator"
	"pet-care-tracker/internal/tracker/inputguard"
	"pet-care-tracker/internal/tracker/opqueue"
	"pet-care-tracker/internal/tracker/rollover"
	"pet-care-tracker/internal/tracker/slotcache"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	AuthVerifier auth.Verifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, Config.DBDSN; si tampoco, in-memory.
	DB *sql.DB

	Config *config.Config // nil => config.Default()
	Logger logger.Logger
	Clock  clockwork.Clock

	// Registry propio por app; nil => uno nuevo.
	Registry *prometheus.Registry

	// Sinks extra para avisos (webhook, fcm). El log y el websocket van siempre.
	Notifiers []notify.Notifier
}

// App es el scope del tracker: un coordinator con su cache, cola, guard y
// rollover, más el handler HTTP que los expone.
type App struct {
	Handler  http.Handler
	Tracker  *coordinator.Coordinator
	Rollover *rollover.Rollover
	Hub      *realtime.Hub

	log       logger.Logger
	closeOnce sync.Once
	closeErr  error
}

func NewRouter(opts Options) http.Handler {
	return New(opts).Handler
}

func New(opts Options) *App {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := logger.OrNop(opts.Logger)
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m := metrics.New(reg)

	// Repos: Postgres si hay DB, si no in-memory
	var (
		subjectRepo subjects.Repository
		eventRepo   careevents.Repository
	)

	db := opts.DB
	if db == nil && cfg.DBDSN != "" {
		opened, err := pg.Open(cfg.DBDSN)
		if err != nil {
			log.Warn("postgres unavailable, using in-memory store", map[string]any{"error": err.Error()})
		} else {
			db = opened
		}
	}
	if db != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := pg.EnsureSchema(ctx, db); err != nil {
			log.Error("postgres schema bootstrap failed", map[string]any{"error": err.Error()})
		}
		cancel()
		subjectRepo = pg.NewSubjectsRepo(db)
		eventRepo = pg.NewEventsRepo(db)
	} else {
		subjectRepo = mem.NewSubjectRepo()
		eventRepo = mem.NewEventRepo()
	}

	// Services por módulo
	subjectsSvc := subjects.NewService(subjectRepo)
	eventsSvc := careevents.NewService(eventRepo)
	statusSvc := medications.NewStatusService(eventsSvc, cfg.DueSoonLookaheadDays).WithClock(clock.Now)

	// Avisos: el guard tiene su propio cooldown; el resto pasa por el dedupe
	hub := realtime.NewHub(log)
	sinks := notifiers.NewMulti(append([]notify.Notifier{notifiers.NewLogNotifier(log), hub}, opts.Notifiers...)...)
	deduped := notifiers.NewDeduper(sinks, cfg.NoticeDedupWindow, m)

	// Tracker scope
	trackerLog := log.With(map[string]any{"component": "tracker"})

	cache := slotcache.New(eventsSvc, slotcache.Options{
		Clock:    clock,
		TTL:      cfg.CacheTTL,
		Location: cfg.Location,
		Logger:   trackerLog,
		Metrics:  m,
	})
	queue := opqueue.New(context.Background(), trackerLog, m)
	guard := inputguard.New(inputguard.Config{
		MinInterval:    cfg.GuardMinInterval,
		BurstWindow:    cfg.GuardBurstWindow,
		ResetWindow:    cfg.GuardResetWindow,
		BlockThreshold: cfg.GuardBlockThreshold,
		AutoReset:      cfg.GuardAutoReset,
		NoticeCooldown: cfg.GuardNoticeCooldown,
	}, inputguard.Options{Clock: clock, Notifier: sinks, Logger: trackerLog, Metrics: m})

	tracker := coordinator.New(coordinator.Config{
		WriteCheckTTL:   cfg.WriteCheckTTL,
		RefreshDebounce: cfg.RefreshDebounce,
	}, coordinator.Deps{
		Events:    eventsSvc,
		Cache:     cache,
		Queue:     queue,
		Guard:     guard,
		Status:    statusSvc,
		Notifier:  deduped,
		Clock:     clock,
		Logger:    trackerLog,
		OnRefresh: hub.BroadcastRefresh,
	})

	roll := rollover.New(tracker.Rollover, rollover.Options{
		Clock:    clock,
		Location: cfg.Location,
		Logger:   trackerLog,
		Metrics:  m,
	})

	// HTTP
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog(log))
	r.Use(middleware.Recover(log))

	r.Use(middleware.Identity(opts.AuthVerifier, log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Handle("/ws", hub)

	// Rutas por módulo
	subjects.RegisterRoutes(r, subjectsSvc)
	careevents.RegisterRoutes(r, eventsSvc, subjectsSvc)
	medications.RegisterRoutes(r, statusSvc)
	coordinator.RegisterRoutes(r, tracker)

	return &App{
		Handler:  r,
		Tracker:  tracker,
		Rollover: roll,
		Hub:      hub,
		log:      log,
	}
}

// Start arma el rollover de medianoche y hace la primera carga del día.
func (a *App) Start(ctx context.Context) {
	a.Rollover.Start(ctx)
	if _, err := a.Tracker.Refresh(ctx, false); err != nil {
		a.log.Warn("initial refresh failed", map[string]any{"error": err.Error()})
	}
}

// Close detiene el rollover, espera las escrituras encoladas y corta los websockets.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		a.Rollover.Stop()
		a.closeErr = a.Tracker.Close(ctx)
		a.Hub.Close()
	})
	return a.closeErr
}
