package database

import (
	"context"
	"errors"
	"sync"
)

// ErrNoBackend is returned when no store backend has been registered.
var ErrNoBackend = errors.New("store backend not initialized: DATABASE_URL is required")

var (
	backendMu   sync.RWMutex
	backendName string
	backend     func() Store
)

// RegisterBackend registers the store constructor for the active backend.
// This is called by the backend packages to avoid import cycles.
func RegisterBackend(name string, store func() Store) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backendName = name
	backend = store
}

// IsInitialized returns whether a backend has been registered.
func IsInitialized() bool {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return backend != nil
}

// BackendName returns the name of the registered backend.
func BackendName() string {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return backendName
}

// GetStore returns the Store of the registered backend
func GetStore(ctx context.Context) (Store, error) {
	backendMu.RLock()
	defer backendMu.RUnlock()
	if backend == nil {
		return nil, ErrNoBackend
	}
	return backend(), nil
}
