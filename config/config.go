// Package config reads the portal configuration from environment
// variables. Every setting has a development-friendly default; only
// production refuses to start without real store credentials.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment separates the deployment modes.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Catalog       CatalogConfig
	Session       SessionConfig
	HTTP          HTTPConfig
	Scheduler     SchedulerConfig
	Observability ObservabilityConfig
}

// AppConfig holds identity and lifecycle settings.
type AppConfig struct {
	Name        string
	Environment Environment
	Debug       bool
	Version     string

	// Timezone governs scheduled jobs; the daily offer sweep fires at
	// local midnight. Location is the resolved form of Timezone.
	Timezone string
	Location *time.Location

	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL settings for the audit ledger.
type DatabaseConfig struct {
	// URL is a postgres:// connection string. When empty, the loader
	// assembles one from the DB_* variables.
	URL string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// QueryTimeout bounds every ledger statement.
	QueryTimeout time.Duration

	// Disabled switches the ledger to the in-memory implementation.
	// Development only; production rejects it.
	Disabled bool
}

// RedisConfig holds settings for the shared record and theme store.
type RedisConfig struct {
	// URL is a redis:// connection string, preferred when set.
	URL string

	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Disabled switches the record and theme stores to the in-memory
	// implementations. Development only; production rejects it.
	Disabled bool
}

// CatalogConfig locates the product catalog.
type CatalogConfig struct {
	// Path of the YAML catalog file. Empty uses the embedded defaults.
	Path string
}

// SessionConfig identifies the student whose session the engine serves.
// When StudentID is set, the record is provisioned at startup.
type SessionConfig struct {
	StudentID      string
	Name           string
	Username       string
	InitialBalance int
}

// HTTPConfig holds the listener settings.
type HTTPConfig struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	EnableCORS     bool
	AllowedOrigins []string

	RateLimitPerMinute int
}

// SchedulerConfig holds background job settings.
type SchedulerConfig struct {
	Enabled bool

	// ThemeSyncInterval drives the theme/viewport reconciliation poll.
	ThemeSyncInterval time.Duration

	// OfferSweepCron is the cron expression of the daily offer sweep.
	OfferSweepCron string

	JobTimeout time.Duration
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text

	MetricsEnabled bool
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	var r reader

	cfg := &Config{
		App:           r.app(),
		Database:      r.database(),
		Redis:         r.redis(),
		Catalog:       CatalogConfig{Path: r.str("CATALOG_PATH", "")},
		Session:       r.session(),
		HTTP:          r.http(),
		Scheduler:     r.scheduler(),
		Observability: r.observability(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate reports every problem at once rather than the first one.
func (c *Config) Validate() error {
	var errs []string

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, "HTTP_PORT must be 1-65535")
	}

	if c.Scheduler.ThemeSyncInterval < 100*time.Millisecond {
		errs = append(errs, "SCHEDULER_THEME_SYNC_INTERVAL must be at least 100ms")
	}

	// Real stores are required in production; in-memory fallbacks are
	// for development only.
	if c.App.Environment == EnvProduction {
		if c.Redis.Disabled {
			errs = append(errs, "REDIS_DISABLED is not allowed in production")
		}
		if c.Database.URL == "" {
			errs = append(errs, "DATABASE_URL is required in production")
		}
	}

	if c.Session.StudentID != "" && c.Session.Name == "" {
		errs = append(errs, "SESSION_NAME is required when SESSION_STUDENT_ID is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// reader bundles the typed environment lookups used by the section
// loaders below.
type reader struct{}

func (reader) str(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (r reader) boolean(key string, fallback bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return b
}

func (r reader) integer(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func (r reader) duration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return d
}

func (r reader) list(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var items []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}

func (r reader) app() AppConfig {
	env := Environment(r.str("APP_ENV", string(EnvDevelopment)))
	tz := r.str("APP_TIMEZONE", "Asia/Almaty")

	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}

	return AppConfig{
		Name:            r.str("APP_NAME", "bilim-reward-hub"),
		Environment:     env,
		Debug:           env == EnvDevelopment || r.boolean("APP_DEBUG", false),
		Version:         r.str("APP_VERSION", "1.0.0"),
		Timezone:        tz,
		Location:        loc,
		ShutdownTimeout: r.duration("APP_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func (r reader) database() DatabaseConfig {
	url := r.str("DATABASE_URL", "")
	if url == "" {
		url = r.assembleDatabaseURL()
	}

	return DatabaseConfig{
		URL:             url,
		MaxOpenConns:    r.integer("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    r.integer("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime: r.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		ConnMaxIdleTime: r.duration("DB_CONN_MAX_IDLE_TIME", time.Minute),
		QueryTimeout:    r.duration("DB_QUERY_TIMEOUT", 10*time.Second),
		Disabled:        r.boolean("DB_DISABLED", url == ""),
	}
}

// assembleDatabaseURL builds a connection string from the piecewise
// DB_* variables. Returns empty when host or user is missing.
func (r reader) assembleDatabaseURL() string {
	host := r.str("DB_HOST", "")
	user := r.str("DB_USER", "")
	if host == "" || user == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user,
		r.str("DB_PASSWORD", ""),
		host,
		r.str("DB_PORT", "5432"),
		r.str("DB_NAME", "postgres"),
		r.str("DB_SSLMODE", "require"),
	)
}

func (r reader) redis() RedisConfig {
	return RedisConfig{
		URL:          r.str("REDIS_URL", ""),
		Host:         r.str("REDIS_HOST", "localhost"),
		Port:         r.integer("REDIS_PORT", 6379),
		Password:     r.str("REDIS_PASSWORD", ""),
		DB:           r.integer("REDIS_DB", 0),
		PoolSize:     r.integer("REDIS_POOL_SIZE", 10),
		MinIdleConns: r.integer("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  r.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  r.duration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: r.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		Disabled:     r.boolean("REDIS_DISABLED", false),
	}
}

func (r reader) session() SessionConfig {
	return SessionConfig{
		StudentID:      r.str("SESSION_STUDENT_ID", ""),
		Name:           r.str("SESSION_NAME", ""),
		Username:       r.str("SESSION_USERNAME", ""),
		InitialBalance: r.integer("SESSION_INITIAL_BALANCE", 0),
	}
}

func (r reader) http() HTTPConfig {
	return HTTPConfig{
		Host:               r.str("HTTP_HOST", "0.0.0.0"),
		Port:               r.integer("HTTP_PORT", 8080),
		ReadTimeout:        r.duration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       r.duration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:        r.duration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		EnableCORS:         r.boolean("HTTP_ENABLE_CORS", true),
		AllowedOrigins:     r.list("HTTP_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerMinute: r.integer("HTTP_RATE_LIMIT_PER_MINUTE", 300),
	}
}

func (r reader) scheduler() SchedulerConfig {
	return SchedulerConfig{
		Enabled:           r.boolean("SCHEDULER_ENABLED", true),
		ThemeSyncInterval: r.duration("SCHEDULER_THEME_SYNC_INTERVAL", time.Second),
		OfferSweepCron:    r.str("SCHEDULER_OFFER_SWEEP_CRON", "0 0 * * *"),
		JobTimeout:        r.duration("SCHEDULER_JOB_TIMEOUT", time.Minute),
	}
}

func (r reader) observability() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       r.str("LOG_LEVEL", "info"),
		LogFormat:      r.str("LOG_FORMAT", "json"),
		MetricsEnabled: r.boolean("METRICS_ENABLED", true),
	}
}
