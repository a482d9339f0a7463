package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultJWTSecret is the development secret. Refused when Env is "prod".
const DefaultJWTSecret = "supersecretkey"

type Config struct {
	Port string

	// Env is "dev" (default) or "prod". When "prod", JWT_SECRET must be set and not the default.
	Env string

	DBHost    string
	DBPort    string
	DBName    string
	DBUser    string
	DBPass    string
	DBSSLMode string

	// DBMaxOpenConns is the maximum number of open connections to the database (default 25).
	DBMaxOpenConns int
	// DBMaxIdleConns is the maximum number of idle connections (default 5).
	DBMaxIdleConns int
	// DBConnMaxLifetimeMin recycles pooled connections after this many minutes (default 30).
	DBConnMaxLifetimeMin int

	JWTSecret string

	// JWTExpireMinutes is the access token lifetime in minutes (default 30). Set via JWT_EXPIRE_MINUTES.
	JWTExpireMinutes int

	// BcryptCost is the bcrypt work factor for stored passwords (default 10).
	BcryptCost int

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	// When empty, the API listens with plain HTTP.
	TLSCertFile string
	TLSKeyFile  string

	// LogFormat is "text" (default) or "json" for structured logging.
	LogFormat string
	// LogLevel is debug, info (default), warn or error.
	LogLevel string

	// CORSAllowedOrigins is a list of origins allowed for CORS (e.g. https://app.example.com, http://localhost:3000).
	// Set via CORS_ALLOWED_ORIGINS (comma-separated). When empty, no CORS headers are sent (same-origin only).
	CORSAllowedOrigins []string

	// EmptyResultNotFound makes a severity query with no matches answer 404 instead of an empty list.
	EmptyResultNotFound bool

	// AdminUsername and AdminPassword, when both set, seed an administrator account at startup.
	AdminUsername string
	AdminPassword string

	// StatsRefreshCron is the cron spec for refreshing the stored-logs gauge (default every minute).
	StatsRefreshCron string

	// AuthRatePerMin limits /token and registration requests per client IP (default 10).
	AuthRatePerMin int
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "dev"),

		DBHost:    getEnv("DB_HOST", "localhost"),
		DBPort:    getEnv("DB_PORT", "5432"),
		DBName:    getEnv("DB_NAME", "logsdb"),
		DBUser:    getEnv("DB_USER", "logsuser"),
		DBPass:    getEnv("DB_PASS", "logspass"),
		DBSSLMode: getEnv("DB_SSLMODE", "disable"),

		DBMaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 30),

		JWTSecret:        getEnv("JWT_SECRET", DefaultJWTSecret),
		JWTExpireMinutes: getEnvInt("JWT_EXPIRE_MINUTES", 30),
		BcryptCost:       getEnvInt("BCRYPT_COST", 10),

		// Optional TLS configuration for HTTPS.
		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),

		CORSAllowedOrigins: parseCORSOrigins(getEnv("CORS_ALLOWED_ORIGINS", "")),

		EmptyResultNotFound: getEnvBool("EMPTY_RESULT_NOT_FOUND", false),

		AdminUsername: strings.TrimSpace(getEnv("ADMIN_USERNAME", "")),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		StatsRefreshCron: getEnv("STATS_REFRESH_CRON", "@every 1m"),
		AuthRatePerMin:   getEnvInt("AUTH_RATE_PER_MIN", 10),
	}
}

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// Validate rejects configurations that must not reach production.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.Env == "prod" && c.JWTSecret == DefaultJWTSecret {
		return errors.New("JWT_SECRET must be set to a non-default value when ENV=prod")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	if (c.AdminUsername == "") != (c.AdminPassword == "") {
		return errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must be set together")
	}
	if len(c.AdminPassword) > MaxPasswordBytes {
		return fmt.Errorf("ADMIN_PASSWORD must be at most %d bytes", MaxPasswordBytes)
	}
	return nil
}

// TLSEnabled reports whether the API should serve HTTPS.
func (c Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// parseCORSOrigins splits a comma-separated list of origins and trims spaces. Empty strings are omitted.
func parseCORSOrigins(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if o := strings.TrimSpace(p); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
