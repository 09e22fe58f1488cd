// Package config loads the client-layer configuration from the process
// environment, optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Paths groups the remote endpoint paths the auth gateway posts to. The
// alternate (Firebase-fronted) deployments expose the same operations under a
// different prefix, so the whole set swaps together.
type Paths struct {
	Login                string
	Refresh              string
	Register             string
	GoogleLogin          string
	PasswordReset        string
	PasswordResetConfirm string
}

// Config captures environment driven configuration for the SiPanit client layer.
type Config struct {
	APIBaseURL      string
	Auth            Paths
	StateDSN        string
	StateSealSecret string
	KioskEnabled    bool
	KioskPort       int
	SearchDebounce  time.Duration
	CacheTTL        time.Duration
	CacheMaxEntries int
	UseAltBackend   bool
}

func defaultPaths() Paths {
	return Paths{
		Login:                "/api/token/",
		Refresh:              "/api/token/refresh/",
		Register:             "/api/auth/register/",
		GoogleLogin:          "/api/auth/google/",
		PasswordReset:        "/api/auth/password-reset/",
		PasswordResetConfirm: "/api/auth/password-reset/confirm/",
	}
}

func altPaths() Paths {
	return Paths{
		Login:                "/v1/auth/login",
		Refresh:              "/v1/auth/refresh",
		Register:             "/v1/auth/register",
		GoogleLogin:          "/v1/auth/google",
		PasswordReset:        "/v1/auth/password-reset",
		PasswordResetConfirm: "/v1/auth/password-reset/confirm",
	}
}

// Load parses configuration values from the current process environment.
//
// A .env file in the working directory is read first when present; explicit
// environment variables win over dotenv entries. Missing required values and
// malformed optional values are accumulated and reported together.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Auth:            defaultPaths(),
		StateDSN:        "file:sipanit.db",
		KioskPort:       8090,
		SearchDebounce:  300 * time.Millisecond,
		CacheTTL:        30 * time.Second,
		CacheMaxEntries: 128,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if base := strings.TrimSpace(os.Getenv("SIPANIT_API_BASE_URL")); base == "" {
		missing = append(missing, "SIPANIT_API_BASE_URL")
	} else {
		cfg.APIBaseURL = strings.TrimRight(base, "/")
	}

	if alt := strings.TrimSpace(os.Getenv("SIPANIT_USE_ALT_BACKEND")); alt != "" {
		use, err := strconv.ParseBool(alt)
		if err != nil {
			invalid = append(invalid, "SIPANIT_USE_ALT_BACKEND")
		} else if use {
			cfg.UseAltBackend = true
			cfg.Auth = altPaths()
		}
	}

	overridePath(&cfg.Auth.Login, "SIPANIT_LOGIN_PATH")
	overridePath(&cfg.Auth.Refresh, "SIPANIT_REFRESH_PATH")
	overridePath(&cfg.Auth.Register, "SIPANIT_REGISTER_PATH")
	overridePath(&cfg.Auth.GoogleLogin, "SIPANIT_GOOGLE_LOGIN_PATH")
	overridePath(&cfg.Auth.PasswordReset, "SIPANIT_PASSWORD_RESET_PATH")
	overridePath(&cfg.Auth.PasswordResetConfirm, "SIPANIT_PASSWORD_RESET_CONFIRM_PATH")

	if dsn := strings.TrimSpace(os.Getenv("SIPANIT_STATE_DSN")); dsn != "" {
		cfg.StateDSN = dsn
	}
	cfg.StateSealSecret = strings.TrimSpace(os.Getenv("SIPANIT_STATE_SEAL_SECRET"))

	if enabled := strings.TrimSpace(os.Getenv("SIPANIT_KIOSK_ENABLED")); enabled != "" {
		value, err := strconv.ParseBool(enabled)
		if err != nil {
			invalid = append(invalid, "SIPANIT_KIOSK_ENABLED")
		} else {
			cfg.KioskEnabled = value
		}
	}

	if portValue := strings.TrimSpace(os.Getenv("SIPANIT_KIOSK_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "SIPANIT_KIOSK_PORT")
		} else {
			cfg.KioskPort = port
		}
	}

	if debounce := strings.TrimSpace(os.Getenv("SIPANIT_SEARCH_DEBOUNCE")); debounce != "" {
		d, err := time.ParseDuration(debounce)
		if err != nil || d <= 0 {
			invalid = append(invalid, "SIPANIT_SEARCH_DEBOUNCE")
		} else {
			cfg.SearchDebounce = d
		}
	}

	if ttlValue := strings.TrimSpace(os.Getenv("SIPANIT_CACHE_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "SIPANIT_CACHE_TTL")
		} else {
			cfg.CacheTTL = ttl
		}
	}

	if entriesValue := strings.TrimSpace(os.Getenv("SIPANIT_CACHE_MAX_ENTRIES")); entriesValue != "" {
		entries, err := strconv.Atoi(entriesValue)
		if err != nil || entries <= 0 {
			invalid = append(invalid, "SIPANIT_CACHE_MAX_ENTRIES")
		} else {
			cfg.CacheMaxEntries = entries
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func overridePath(target *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*target = value
	}
}
