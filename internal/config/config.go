// Package config loads runtime settings from the environment.
//
// A .env file in the working directory is read first when present; variables
// already set in the process environment take precedence over it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config is the full set of runtime settings.
type Config struct {
	Port     int
	LogLevel slog.Level

	StoreDriver   string
	DBPath        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret  string
	SessionTTL time.Duration

	// Google sign-in is disabled when GoogleClientID is empty.
	GoogleClientID string
	GoogleIssuer   string
	GoogleJWKSURL  string

	// Supabase login is disabled when SupabaseURL is empty.
	SupabaseURL     string
	SupabaseAnonKey string

	UpstreamTimeout time.Duration
	CORSOrigin      string
}

// Load reads .env (if any) and then the process environment.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromLookup(os.Getenv)
}

// FromLookup builds a Config from getenv. Tests pass a map lookup.
func FromLookup(getenv func(string) string) (Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		StoreDriver:     strings.ToLower(env("STORE_DRIVER", DriverSQLite)),
		DBPath:          env("DB_PATH", "data/auth.db"),
		RedisAddr:       env("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getenv("REDIS_PASSWORD"),
		JWTSecret:       getenv("JWT_SECRET"),
		GoogleClientID:  env("GOOGLE_CLIENT_ID", ""),
		GoogleIssuer:    env("GOOGLE_ISSUER", "https://accounts.google.com"),
		GoogleJWKSURL:   env("GOOGLE_JWKS_URL", "https://www.googleapis.com/oauth2/v3/certs"),
		SupabaseURL:     env("SUPABASE_URL", ""),
		SupabaseAnonKey: env("SUPABASE_ANON_KEY", ""),
		CORSOrigin:      env("CORS_ORIGIN", ""),
	}

	var err error
	if cfg.Port, err = strconv.Atoi(env("PORT", "5000")); err != nil || cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("config: invalid PORT %q", getenv("PORT"))
	}
	if cfg.RedisDB, err = strconv.Atoi(env("REDIS_DB", "0")); err != nil || cfg.RedisDB < 0 {
		return Config{}, fmt.Errorf("config: invalid REDIS_DB %q", getenv("REDIS_DB"))
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(env("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("config: invalid LOG_LEVEL: %w", err)
	}
	if cfg.SessionTTL, err = parsePositiveDuration("SESSION_TTL", env("SESSION_TTL", "168h")); err != nil {
		return Config{}, err
	}
	if cfg.UpstreamTimeout, err = parsePositiveDuration("UPSTREAM_TIMEOUT", env("UPSTREAM_TIMEOUT", "10s")); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if len(c.JWTSecret) < 16 {
		return errors.New("config: JWT_SECRET must be set and at least 16 characters")
	}
	switch c.StoreDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			return errors.New("config: DB_PATH must not be empty")
		}
	case DriverRedis:
		if c.RedisAddr == "" {
			return errors.New("config: REDIS_ADDR must not be empty")
		}
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q (want %s or %s)", c.StoreDriver, DriverSQLite, DriverRedis)
	}
	return nil
}

func parsePositiveDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: invalid %s %q", key, raw)
	}
	return d, nil
}
