// Package config loads process configuration from the environment.
//
//	ROSTER_BLOB_DRIVER: fs|memory|s3|redis|sqlite|postgres (default fs)
//	ROSTER_STORE_KEY: blob key holding the roster (default saved-users-data)
//	ROSTER_HTTP_ADDR: listen address for rosterd (default :8080)
//	ROSTER_LOG_LEVEL: debug|info|warn|error (default info)
//	ROSTER_LOG_FORMAT: json|console (default json)
//	ROSTER_METRICS_BACKEND: prometheus|expvar|none (default prometheus)
//	ROSTER_SEARCH_QUIET_MS: search debounce in milliseconds (default 1000)
//	ROSTER_CONSOLE_HISTORY: readline history file (default none)
//	ROSTER_CONSOLE_VIM: vi key bindings in the console (default false)
//
// Driver specific variables (ROSTER_BLOB_FS_ROOT, ROSTER_BLOB_S3_*, ...) are
// read by the blob factory itself.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"rosterkit/internal/blob"
)

const (
	DefaultStoreKey    = "saved-users-data"
	DefaultHTTPAddr    = ":8080"
	DefaultSearchQuiet = 1000 * time.Millisecond
)

// Config is the typed view of the environment.
type Config struct {
	BlobDriver     blob.Driver
	StoreKey       string
	HTTPAddr       string
	LogLevel       string
	LogFormat      string
	MetricsBackend string
	SearchQuiet    time.Duration
	ConsoleHistory string
	ConsoleVim     bool
}

// Load reads the environment. Malformed numbers are reported rather than
// silently replaced.
func Load() (Config, error) {
	quietMS, err := getenvInt("ROSTER_SEARCH_QUIET_MS", int(DefaultSearchQuiet/time.Millisecond))
	if err != nil {
		return Config{}, err
	}
	if quietMS < 0 {
		return Config{}, fmt.Errorf("ROSTER_SEARCH_QUIET_MS must not be negative")
	}
	vim, err := getenvBool("ROSTER_CONSOLE_VIM", false)
	if err != nil {
		return Config{}, err
	}
	return Config{
		BlobDriver:     blob.Driver(getenv("ROSTER_BLOB_DRIVER", string(blob.DriverFilesystem))),
		StoreKey:       getenv("ROSTER_STORE_KEY", DefaultStoreKey),
		HTTPAddr:       getenv("ROSTER_HTTP_ADDR", DefaultHTTPAddr),
		LogLevel:       getenv("ROSTER_LOG_LEVEL", "info"),
		LogFormat:      getenv("ROSTER_LOG_FORMAT", "json"),
		MetricsBackend: getenv("ROSTER_METRICS_BACKEND", "prometheus"),
		SearchQuiet:    time.Duration(quietMS) * time.Millisecond,
		ConsoleHistory: os.Getenv("ROSTER_CONSOLE_HISTORY"),
		ConsoleVim:     vim,
	}, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
