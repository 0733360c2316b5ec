// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

package sqlite_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/contextd-dev/contextd/internal/store"
)

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name+".db")
}

func testChunk(doc string, pos int, text string, embedding []float32) store.Chunk {
	return store.Chunk{
		ID:         fmt.Sprintf("%s-%d", doc, pos),
		DocumentID: doc,
		Position:   pos,
		Text:       text,
		Embedding:  embedding,
	}
}
