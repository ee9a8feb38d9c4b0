// Package kv holds the local key-value stores the ledger and milestone
// record are persisted in. Values are opaque bytes; callers own the encoding.
package kv

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kv: store is closed")

// Store is a flat key-value store.
type Store interface {
	// Get returns the value for key. ok is false when the key has never been written.
	Get(key string) (value []byte, ok bool, err error)
	// Put replaces the value for key.
	Put(key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
	Close() error
}

// Pather is implemented by stores backed by files on disk, so watchers know what to observe.
type Pather interface {
	Paths() []string
}

func validKey(key string) error {
	if key == "" {
		return errors.New("kv: empty key")
	}
	for _, r := range key {
		if r == '/' || r == '\\' || r == 0 {
			return errors.New("kv: key contains a path separator")
		}
	}
	if key == "." || key == ".." {
		return errors.New("kv: invalid key")
	}
	return nil
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// SQLiteFile is the database file name used inside the data directory.
const SQLiteFile = "touchgrass.db"

// Open builds the store for a backend rooted at dir.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(dir)
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(dir, SQLiteFile))
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("kv: unknown backend %q", backend)
	}
}
