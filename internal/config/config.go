package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration for the account service.
type Config struct {
	Addr         string
	PostgresDSN  string
	RedisAddr    string
	RedisDB      int
	PermCacheTTL time.Duration
	Version      string
}

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:         getenv("ACCOUNTSVC_ADDR", ":8080"),
		PostgresDSN:  os.Getenv("ACCOUNTSVC_PG_DSN"),
		RedisAddr:    os.Getenv("ACCOUNTSVC_REDIS_ADDR"),
		PermCacheTTL: 5 * time.Minute,
		Version:      getenv("ACCOUNTSVC_VERSION", "dev"),
	}
	if raw := os.Getenv("ACCOUNTSVC_REDIS_DB"); raw != "" {
		if db, err := strconv.Atoi(raw); err == nil {
			cfg.RedisDB = db
		}
	}
	if raw := os.Getenv("ACCOUNTSVC_PERM_CACHE_TTL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.PermCacheTTL = d
		}
	}
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
