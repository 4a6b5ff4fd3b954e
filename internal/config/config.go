package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	pkgauth "github.com/BradenHooton/attendly/pkg/auth"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Session  SessionConfig
	Auth     AuthConfig
	Admin    AdminBootstrapConfig
}

type DatabaseConfig struct {
	Driver            string
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	SQLitePath        string
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies []string
}

type SessionConfig struct {
	CookieName         string
	CookieDomain       string
	ForceSecure        bool
	IdleTimeout        time.Duration
	RegenerateInterval time.Duration
	CleanupInterval    time.Duration
}

type AuthConfig struct {
	MaxSessionAttempts  int
	AttemptWindow       time.Duration
	MaxAccountAttempts  int
	BcryptCost          int
	TimingDelayBaseMs   int
	TimingDelayRandomMs int
	IPRequestsPerMinute int
}

// AdminBootstrapConfig seeds the first account when both fields are set
type AdminBootstrapConfig struct {
	Username string
	Password string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Driver:            strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "attendly"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			SQLitePath:        getEnv("SQLITE_PATH", "attendly.db"),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            getEnv("ENV", "development"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
		},
		Session: SessionConfig{
			CookieName:         getEnv("SESSION_COOKIE_NAME", "attendly_session"),
			CookieDomain:       getEnv("SESSION_COOKIE_DOMAIN", ""),
			ForceSecure:        getEnvAsBool("SESSION_COOKIE_SECURE", false),
			IdleTimeout:        getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			RegenerateInterval: getEnvAsDuration("SESSION_REGENERATE_INTERVAL", 15*time.Minute),
			CleanupInterval:    getEnvAsDuration("SESSION_CLEANUP_INTERVAL", 5*time.Minute),
		},
		Auth: AuthConfig{
			MaxSessionAttempts:  getEnvAsInt("AUTH_MAX_SESSION_ATTEMPTS", 5),
			AttemptWindow:       getEnvAsDuration("AUTH_ATTEMPT_WINDOW", 5*time.Minute),
			MaxAccountAttempts:  getEnvAsInt("AUTH_MAX_ACCOUNT_ATTEMPTS", 10),
			BcryptCost:          getEnvAsInt("AUTH_BCRYPT_COST", pkgauth.BcryptCost),
			TimingDelayBaseMs:   getEnvAsInt("AUTH_TIMING_DELAY_BASE_MS", 250),
			TimingDelayRandomMs: getEnvAsInt("AUTH_TIMING_DELAY_RANDOM_MS", 100),
			IPRequestsPerMinute: getEnvAsInt("AUTH_IP_REQUESTS_PER_MINUTE", 20),
		},
		Admin: AdminBootstrapConfig{
			Username: getEnv("ADMIN_USERNAME", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive")
	}
	// Rotation must happen at least once within an idle window to matter
	if c.Session.RegenerateInterval <= 0 || c.Session.RegenerateInterval > c.Session.IdleTimeout {
		return fmt.Errorf("SESSION_REGENERATE_INTERVAL must be in (0, %s]", c.Session.IdleTimeout)
	}

	if c.Auth.MaxSessionAttempts < 1 || c.Auth.MaxAccountAttempts < 1 {
		return fmt.Errorf("login attempt limits must be at least 1")
	}
	if c.Auth.AttemptWindow <= 0 {
		return fmt.Errorf("AUTH_ATTEMPT_WINDOW must be positive")
	}
	if err := pkgauth.ValidCost(c.Auth.BcryptCost); err != nil {
		return fmt.Errorf("AUTH_BCRYPT_COST: %w", err)
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
