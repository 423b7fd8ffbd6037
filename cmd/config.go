package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"orderflow/internal/core/domain/services"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"

	RealtimeListen = "listen"
	RealtimePoll   = "poll"
)

type Config struct {
	HTTPPort string

	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	SQLitePath string

	AMQPURL       string
	AuthJWTSecret string

	RealtimeMode string
	PollInterval time.Duration
	StoreTimeout time.Duration

	NotifyWorkers    int
	NotifyQueueSize  int
	NotifyMaxElapsed time.Duration
	NotifyDrain      time.Duration

	Estimator               services.EstimatorConfig
	EstimateRefreshInterval time.Duration
	ActiveTerminalRetention time.Duration

	ServiceName string
}

// PostgresDSN builds the connection string from the DB_* settings.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSslMode)
}

// LoadConfig reads .env when present, then the environment. Unset variables take their
// defaults; malformed ones are reported together.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	p := envParser{}
	defaults := services.DefaultEstimatorConfig()
	cfg := Config{
		HTTPPort: p.str("HTTP_PORT", "8080"),

		DBDriver:   strings.ToLower(p.str("DB_DRIVER", StoreMemory)),
		DBHost:     p.str("DB_HOST", "localhost"),
		DBPort:     p.str("DB_PORT", "5432"),
		DBUser:     p.str("DB_USER", "postgres"),
		DBPassword: p.str("DB_PASSWORD", ""),
		DBName:     p.str("DB_NAME", "orderflow"),
		DBSslMode:  p.str("DB_SSLMODE", "disable"),
		SQLitePath: p.str("SQLITE_PATH", "orderflow.db"),

		AMQPURL:       p.str("AMQP_URL", ""),
		AuthJWTSecret: p.str("AUTH_JWT_SECRET", ""),

		RealtimeMode: strings.ToLower(p.str("REALTIME_MODE", RealtimeListen)),
		PollInterval: p.duration("POLL_INTERVAL", 2*time.Second),
		StoreTimeout: p.duration("STORE_TIMEOUT", 3*time.Second),

		NotifyWorkers:    p.integer("NOTIFY_WORKERS", 4),
		NotifyQueueSize:  p.integer("NOTIFY_QUEUE_SIZE", 256),
		NotifyMaxElapsed: p.duration("NOTIFY_MAX_ELAPSED", 30*time.Second),
		NotifyDrain:      p.duration("NOTIFY_DRAIN_TIMEOUT", 5*time.Second),

		Estimator: services.EstimatorConfig{
			Window:      p.duration("ESTIMATE_WINDOW", defaults.Window),
			SampleLimit: p.integer("ESTIMATE_SAMPLE_LIMIT", defaults.SampleLimit),
			MinSamples:  p.integer("ESTIMATE_MIN_SAMPLES", defaults.MinSamples),
			Ceiling:     p.duration("ESTIMATE_CEILING", defaults.Ceiling),
			Baseline:    p.duration("ESTIMATE_BASELINE", defaults.Baseline),
			Parallelism: p.integer("ESTIMATE_PARALLELISM", defaults.Parallelism),
		},
		EstimateRefreshInterval: p.duration("ESTIMATE_REFRESH_INTERVAL", time.Minute),
		ActiveTerminalRetention: p.duration("ACTIVE_TERMINAL_RETENTION", 30*time.Minute),

		ServiceName: p.str("OTEL_SERVICE_NAME", "orderflow"),
	}

	switch cfg.DBDriver {
	case StoreMemory, StorePostgres, StoreSQLite:
	default:
		p.errs = append(p.errs, fmt.Errorf("DB_DRIVER: unsupported value %q", cfg.DBDriver))
	}
	switch cfg.RealtimeMode {
	case RealtimeListen, RealtimePoll:
	default:
		p.errs = append(p.errs, fmt.Errorf("REALTIME_MODE: unsupported value %q", cfg.RealtimeMode))
	}
	if cfg.AuthJWTSecret == "" {
		p.errs = append(p.errs, errors.New("AUTH_JWT_SECRET is required"))
	}

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type envParser struct {
	errs []error
}

func (p *envParser) str(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (p *envParser) integer(key string, fallback int) int {
	raw := p.str(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func (p *envParser) duration(key string, fallback time.Duration) time.Duration {
	raw := p.str(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}
