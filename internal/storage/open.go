package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Supported backend names.
const (
	BackendBadger = "badger"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open creates the named backend rooted at dir. The memory backend ignores dir.
func Open(backend, dir string) (DB, error) {
	if backend == BackendMemory {
		return NewMemory(), nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store dir %s: %w", dir, err)
	}
	switch backend {
	case BackendBadger, "":
		return NewBadger(dir)
	case BackendBolt:
		return NewBolt(filepath.Join(dir, "store.bolt"))
	case BackendSQLite:
		return NewSQLite(filepath.Join(dir, "store.sqlite"))
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
