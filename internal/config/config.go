package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Port            string
	Env             string
	AuthKey         string
	HistoryBackend  string
	RedisURL        string
	DatabaseURL     string
	HistoryPrefix   string
	HistoryPageSize int
	StoreTimeout    time.Duration
	PingInterval    time.Duration
	SweepInterval   time.Duration
	InactivityLimit time.Duration
	MaxMessageBytes int
	AllowedOrigins  []string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Str("component", "config").Msg("no .env file found, relying on system environment variables")
	} else {
		log.Info().Str("component", "config").Msg("loaded .env file")
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	var errs []error

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("APP_ENV", "development"),
		AuthKey:        getEnv("AUTH_KEY", ""),
		HistoryBackend: strings.ToLower(getEnv("HISTORY_BACKEND", BackendRedis)),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		HistoryPrefix:  getEnv("HISTORY_KEY_PREFIX", "chatHistory"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
	}

	cfg.HistoryPageSize = getInt("HISTORY_PAGE_SIZE", 20, &errs)
	cfg.MaxMessageBytes = getInt("MAX_MESSAGE_BYTES", 4096, &errs)
	cfg.StoreTimeout = getDuration("STORE_TIMEOUT", 2*time.Second, &errs)
	cfg.PingInterval = getDuration("PING_INTERVAL", 3*time.Second, &errs)
	cfg.SweepInterval = getDuration("SWEEP_INTERVAL", 10*time.Second, &errs)
	cfg.InactivityLimit = getDuration("INACTIVITY_LIMIT", 30*time.Second, &errs)

	switch cfg.HistoryBackend {
	case BackendRedis:
		if cfg.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis history backend"))
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres history backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("HISTORY_BACKEND %q: want redis, postgres or memory", cfg.HistoryBackend))
	}

	// A one-message page ends at cursor 0, which reads as "newest".
	if cfg.HistoryPageSize < 2 {
		errs = append(errs, errors.New("HISTORY_PAGE_SIZE must be at least 2"))
	}
	if cfg.MaxMessageBytes <= 0 {
		errs = append(errs, errors.New("MAX_MESSAGE_BYTES must be positive"))
	}
	if cfg.InactivityLimit <= cfg.PingInterval {
		errs = append(errs, errors.New("INACTIVITY_LIMIT must be longer than PING_INTERVAL"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	l := log.Info().Str("component", "config").
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Str("history_backend", cfg.HistoryBackend)
	switch cfg.HistoryBackend {
	case BackendRedis:
		l = l.Str("redis_url", maskURL(cfg.RedisURL))
	case BackendPostgres:
		l = l.Str("database_url", maskURL(cfg.DatabaseURL))
	}
	l.Bool("auth", cfg.AuthKey != "").Msg("configuration loaded")

	if cfg.AuthKey == "" {
		log.Warn().Str("component", "config").Msg("AUTH_KEY not set, websocket connections are unauthenticated")
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		log.Debug().Str("component", "config").Str("key", key).Str("default", defaultValue).Msg("variable not set, using default")
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int, errs *[]error) int {
	raw := getEnv(key, strconv.Itoa(defaultValue))
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return n
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := getEnv(key, defaultValue.String())
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	if d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s must be positive", key))
		return defaultValue
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// maskURL hides credentials in a connection string.
func maskURL(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return "invalid-url-format"
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return dsn
	}
	return scheme + "://****:****@" + rest[at+1:]
}
