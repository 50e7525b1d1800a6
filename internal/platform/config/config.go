package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything the server needs from the environment so
// main stays lean. Redis and postgres are optional: without a redis URL
// the audit stream skips external broadcast, and without a database URL
// grants live in memory.
type Config struct {
	Addr          string
	AuditDir      string
	BackendURL    string
	ExecTimeout   time.Duration
	StreamHistory int
	RedisURL      string
	DatabaseURL   string
	JWTSigningKey string
}

// FromEnv builds a Config from environment variables with development
// defaults.
func FromEnv() Config {
	return Config{
		Addr:          envOr("WARDEN_ADDR", ":8080"),
		AuditDir:      envOr("WARDEN_AUDIT_DIR", "data/audit"),
		BackendURL:    envOr("WARDEN_BACKEND_URL", "http://127.0.0.1:8765"),
		ExecTimeout:   envDuration("WARDEN_EXEC_TIMEOUT", 30*time.Second),
		StreamHistory: envInt("WARDEN_STREAM_HISTORY", 100),
		RedisURL:      os.Getenv("WARDEN_REDIS_URL"),
		DatabaseURL:   os.Getenv("WARDEN_DATABASE_URL"),
		// Development default; must be overridden in production.
		JWTSigningKey: envOr("WARDEN_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
