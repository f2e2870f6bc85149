package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Maintenance  MaintenanceConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
// BootstrapAdmin* seed the first admin account on startup when set.
type AuthConfig struct {
	JWTSecret              string
	AccessTokenTTLMinutes  int
	BcryptCost             int
	BootstrapAdminName     string
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// NotificationConfig controls the e-mail fan-out and the unread counter cache.
// E-mail is disabled while SMTPHost is empty.
type NotificationConfig struct {
	EmailFrom             string
	SMTPHost              string
	SMTPPort              int
	SMTPUser              string
	SMTPPassword          string
	UnreadCacheTTLSeconds int
}

// MaintenanceConfig drives the periodic sweep.
type MaintenanceConfig struct {
	Enabled             bool
	IntervalSeconds     int
	LockTTLSeconds      int
	StuckAfterHours     int
	OverdueAfterHours   int
	LogRetentionDays    int
	NotificationRetDays int
	BatchSize           int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:              getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes:  getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 12),
			BootstrapAdminName:     getEnv("BOOTSTRAP_ADMIN_NAME", "Administrator"),
			BootstrapAdminEmail:    os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
			BootstrapAdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
		},
		Notification: NotificationConfig{
			EmailFrom:             getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			SMTPHost:              os.Getenv("SMTP_HOST"),
			SMTPPort:              getEnvAsInt("SMTP_PORT", 587),
			SMTPUser:              os.Getenv("SMTP_USER"),
			SMTPPassword:          os.Getenv("SMTP_PASSWORD"),
			UnreadCacheTTLSeconds: getEnvAsInt("NOTIFY_UNREAD_CACHE_TTL_SECONDS", 60),
		},
		Maintenance: MaintenanceConfig{
			Enabled:             getEnvAsBool("MAINTENANCE_ENABLED", true),
			IntervalSeconds:     getEnvAsInt("MAINTENANCE_INTERVAL_SECONDS", 3600),
			LockTTLSeconds:      getEnvAsInt("MAINTENANCE_LOCK_TTL_SECONDS", 600),
			StuckAfterHours:     getEnvAsInt("MAINTENANCE_STUCK_AFTER_HOURS", 72),
			OverdueAfterHours:   getEnvAsInt("MAINTENANCE_OVERDUE_AFTER_HOURS", 24),
			LogRetentionDays:    getEnvAsInt("MAINTENANCE_LOG_RETENTION_DAYS", 90),
			NotificationRetDays: getEnvAsInt("MAINTENANCE_NOTIFICATION_RETENTION_DAYS", 30),
			BatchSize:           getEnvAsInt("MAINTENANCE_BATCH_SIZE", 200),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Interval returns the sweep period.
func (m MaintenanceConfig) Interval() time.Duration {
	if m.IntervalSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(m.IntervalSeconds) * time.Second
}

// LockTTL returns how long one instance may hold the sweep lock.
func (m MaintenanceConfig) LockTTL() time.Duration {
	if m.LockTTLSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(m.LockTTLSeconds) * time.Second
}

// EmailEnabled reports whether SMTP delivery is configured.
func (n NotificationConfig) EmailEnabled() bool {
	return n.SMTPHost != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
