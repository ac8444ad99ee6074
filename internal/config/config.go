package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values.  It is built once at process
// start and passed by value into the components that need it; nothing reads
// the environment after startup.
type Config struct {
	Env    string // application environment (e.g. "dev", "prod")
	Port   string // HTTP port to listen on
	DBUser string
	DBPass string // optional
	DBHost string
	DBPort string
	DBName string

	JWTSecret      string        // secret used to sign JWTs; required, no default
	AccessTTL      time.Duration // access token lifetime
	RefreshTTL     time.Duration // refresh token lifetime
	BcryptCost     int
	RefreshTTLDays int // kept alongside RefreshTTL for cookie max-age math

	LockoutThreshold int           // failed attempts before the account locks
	LockoutDuration  time.Duration // how long a lockout lasts

	GoogleClientID string // registered OAuth client id; empty disables Google sign-in
	FrontendURL    string // base URL used to build email verification links
}

// Load reads configuration from environment variables.  Required variables
// are enforced by must(); missing values stop the process at startup.
func Load() Config {
	refreshDays := intDef("REFRESH_TOKEN_TTL_DAYS", 7)
	return Config{
		Env:    must("APP_ENV"),
		Port:   must("APP_PORT"),
		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		JWTSecret:      must("JWT_SECRET"),
		AccessTTL:      time.Duration(intDef("ACCESS_TOKEN_TTL_MIN", 15)) * time.Minute,
		RefreshTTL:     time.Duration(refreshDays) * 24 * time.Hour,
		RefreshTTLDays: refreshDays,
		BcryptCost:     intDef("BCRYPT_COST", 12),

		LockoutThreshold: intDef("LOCKOUT_THRESHOLD", 5),
		LockoutDuration:  time.Duration(intDef("LOCKOUT_MINUTES", 30)) * time.Minute,

		GoogleClientID: os.Getenv("GOOGLE_CLIENT_ID"),
		FrontendURL:    envStr("FRONTEND_URL", "http://localhost:3000"),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// intDef reads an integer variable with a default.  Invalid values are fatal
// rather than silently defaulted.
func intDef(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
