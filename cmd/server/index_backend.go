package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cavewarden.ai/internal/persistence/indexdb"
)

// openRuntimeIndex opens the read-model index. It never affects the simulation.
func openRuntimeIndex(dataDir, runID string, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("CW_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(dataDir, "index", "cavewarden.sqlite")
		return indexdb.OpenSQLite(dbPath, runID)
	default:
		return nil, fmt.Errorf("unsupported CW_INDEX_BACKEND: %s", backend)
	}
}
