package config

import (
	"os"
	"strconv"

	"github.com/tidalsync/core/pkg/hlc"
)

// Config holds per-node configuration for the convergence engine: the
// identity it presents to peers and the storage/transport backends it
// binds to at startup.
type Config struct {
	NodeID       string
	GroupID      string
	LogLevel     string
	StoreBackend string // "memory", "sqlite", "postgres"
	DatabaseURL  string
	SyncEndpoint string
	MaxDriftMS   int64
}

// Load builds a Config from environment variables, falling back to
// process-local defaults suited to a single-node dev run.
func Load() *Config {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	storeBackend := os.Getenv("STORE_BACKEND")
	if storeBackend == "" {
		storeBackend = "memory"
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = "file:tidalsync.db?mode=rwc"
	}

	syncEndpoint := os.Getenv("SYNC_ENDPOINT")
	if syncEndpoint == "" {
		syncEndpoint = "http://localhost:8080/sync"
	}

	maxDrift := hlc.MaxDriftMS
	if v := os.Getenv("MAX_DRIFT_MS"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			maxDrift = parsed
		}
	}

	return &Config{
		NodeID:       os.Getenv("NODE_ID"),
		GroupID:      os.Getenv("GROUP_ID"),
		LogLevel:     logLevel,
		StoreBackend: storeBackend,
		DatabaseURL:  dbURL,
		SyncEndpoint: syncEndpoint,
		MaxDriftMS:   maxDrift,
	}
}
