// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

package store

import (
	"sync"

	"github.com/contextd-dev/contextd/pkg/errors"
)

// DefaultDimension is the embedding dimension stores are created with when
// the config does not override it.
const DefaultDimension = 384

// Factory creates the backend's stores rooted at dataDir with vectors of
// the given dimension.
type Factory func(dataDir string, dimension int) (VectorIndex, CredentialStore, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// RegisterBackend registers a named storage backend. Backend packages call
// this from init(). Goroutine-safe.
func RegisterBackend(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// Open creates the stores for the named backend. An empty name selects
// "sqlite".
func Open(backend, dataDir string, dimension int) (VectorIndex, CredentialStore, error) {
	if backend == "" {
		backend = "sqlite"
	}
	if dimension <= 0 {
		dimension = DefaultDimension
	}

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, nil, errors.New(errors.CodeStoreBackendUnknown,
			"unsupported storage backend", errors.Field("backend", backend))
	}
	return factory(dataDir, dimension)
}
