// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

package sqlite

import (
	"os"
	"path/filepath"

	"github.com/contextd-dev/contextd/internal/store"
	"github.com/contextd-dev/contextd/pkg/errors"
)

func init() {
	store.RegisterBackend("sqlite", newStores)
}

func newStores(dataDir string, dimension int) (store.VectorIndex, store.CredentialStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeStoreDatabaseFailure, "creating data directory",
			errors.Field("dir", dataDir))
	}

	idx, err := NewVectorIndex(filepath.Join(dataDir, "vectors.db"), dimension)
	if err != nil {
		return nil, nil, err
	}

	creds, err := NewCredentialStore(filepath.Join(dataDir, "users.db"))
	if err != nil {
		_ = idx.Close()
		return nil, nil, err
	}

	return idx, creds, nil
}
