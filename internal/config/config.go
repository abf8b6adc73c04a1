package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config agrupa la configuración del proceso. Todo sale de env (con .env opcional).
type Config struct {
	Port  string
	DBDSN string // vacío => repos in-memory

	Location *time.Location // zona para "hoy", slots y medianoche

	CacheTTL      time.Duration
	WriteCheckTTL time.Duration

	GuardMinInterval    time.Duration
	GuardBurstWindow    time.Duration
	GuardResetWindow    time.Duration
	GuardBlockThreshold int
	GuardAutoReset      time.Duration
	GuardNoticeCooldown time.Duration

	DueSoonLookaheadDays int

	NoticeDedupWindow time.Duration
	RefreshDebounce   time.Duration

	NotifyWebhookURL   string
	FCMCredentialsPath string
	FCMTopic           string

	// Verificador remoto de tokens; vacío => modo dev (X-Debug-User-ID)
	AuthVerifyURL    string
	AuthAPIKey       string
	AuthAPIKeyHeader string
}

// Default devuelve la configuración sin leer el entorno (tests, router sin config).
func Default() *Config {
	return &Config{
		Port:     "8080",
		Location: time.Local,

		CacheTTL:      5 * time.Minute,
		WriteCheckTTL: 30 * time.Second,

		GuardMinInterval:    50 * time.Millisecond,
		GuardBurstWindow:    100 * time.Millisecond,
		GuardResetWindow:    500 * time.Millisecond,
		GuardBlockThreshold: 15,
		GuardAutoReset:      1500 * time.Millisecond,
		GuardNoticeCooldown: 5 * time.Second,

		DueSoonLookaheadDays: 3,

		NoticeDedupWindow: 10 * time.Second,
		RefreshDebounce:   250 * time.Millisecond,

		FCMTopic: "pet-care",
	}
}

// Load lee .env si existe y luego variables de entorno.
func Load() (*Config, error) {
	// .env es opcional (en prod todo viene del entorno)
	_ = godotenv.Load()

	loc, err := loadLocation(getEnv("TZ_NAME", "Local"))
	if err != nil {
		return nil, err
	}

	def := Default()
	cfg := &Config{
		Port:     getEnv("PORT", def.Port),
		DBDSN:    getEnv("DB_DSN", ""),
		Location: loc,

		CacheTTL:      getEnvDuration("CACHE_TTL", def.CacheTTL),
		WriteCheckTTL: getEnvDuration("WRITE_CHECK_TTL", def.WriteCheckTTL),

		GuardMinInterval:    getEnvDuration("GUARD_MIN_INTERVAL", def.GuardMinInterval),
		GuardBurstWindow:    getEnvDuration("GUARD_BURST_WINDOW", def.GuardBurstWindow),
		GuardResetWindow:    getEnvDuration("GUARD_RESET_WINDOW", def.GuardResetWindow),
		GuardBlockThreshold: getEnvInt("GUARD_BLOCK_THRESHOLD", def.GuardBlockThreshold),
		GuardAutoReset:      getEnvDuration("GUARD_AUTO_RESET", def.GuardAutoReset),
		GuardNoticeCooldown: getEnvDuration("GUARD_NOTICE_COOLDOWN", def.GuardNoticeCooldown),

		DueSoonLookaheadDays: getEnvInt("DUE_SOON_LOOKAHEAD_DAYS", def.DueSoonLookaheadDays),

		NoticeDedupWindow: getEnvDuration("NOTICE_DEDUP_WINDOW", def.NoticeDedupWindow),
		RefreshDebounce:   getEnvDuration("REFRESH_DEBOUNCE", def.RefreshDebounce),

		NotifyWebhookURL:   getEnv("NOTIFY_WEBHOOK_URL", ""),
		FCMCredentialsPath: getEnv("FCM_CREDENTIALS_PATH", ""),
		FCMTopic:           getEnv("FCM_TOPIC", def.FCMTopic),

		AuthVerifyURL:    getEnv("AUTH_VERIFY_URL", ""),
		AuthAPIKey:       getEnv("AUTH_API_KEY", ""),
		AuthAPIKeyHeader: getEnv("AUTH_API_KEY_HEADER", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.GuardBlockThreshold < 2 {
		return fmt.Errorf("config: GUARD_BLOCK_THRESHOLD must be >= 2 (got %d)", c.GuardBlockThreshold)
	}
	if c.DueSoonLookaheadDays < 0 {
		return fmt.Errorf("config: DUE_SOON_LOOKAHEAD_DAYS must be >= 0 (got %d)", c.DueSoonLookaheadDays)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("config: CACHE_TTL must be positive")
	}
	return nil
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("config: invalid TZ_NAME %q: %w", name, err)
	}
	return loc, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// getEnvDuration acepta "1500ms", "5m" o un entero en milisegundos.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Millisecond
	}
	return def
}
