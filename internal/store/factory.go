// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

package store

import (
	"sync"

	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

// Factory creates the document and settings stores rooted at dataPath.
type Factory func(dataPath string) (DocumentStore, SettingsStore, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend. Backend
// packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// NewStores creates the stores for the named backend, defaulting to
// "sqlite".
func NewStores(backend, dataPath string) (DocumentStore, SettingsStore, error) {
	if backend == "" {
		backend = "sqlite"
	}

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, nil, raglerr.New(raglerr.CodeStoreBackendUnsupported,
			"unsupported storage backend", raglerr.FieldBackend(backend))
	}

	return factory(dataPath)
}
