// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

// Package sqlite implements the store backends on SQLite, with sqlite-vec
// providing the vector index.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/contextd-dev/contextd/internal/store"
	"github.com/contextd-dev/contextd/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.VectorIndex = (*VectorIndex)(nil)

// VectorIndex implements store.VectorIndex backed by SQLite with sqlite-vec.
//
// Chunk text and provenance live in a companion table whose rowid doubles as
// the insertion-order tie-breaker for equal-distance query results.
type VectorIndex struct {
	db        *sql.DB
	dimension int

	// Serializes multi-statement mutations. Queries go lock-free through
	// the database handle.
	mu sync.Mutex
}

// NewVectorIndex opens (or creates) the index database at dbPath. Opening an
// existing database with a different dimension fails rather than silently
// corrupting the index.
func NewVectorIndex(dbPath string, dimension int) (*VectorIndex, error) {
	if dimension <= 0 {
		return nil, errors.New(errors.CodeStoreDimensionMismatch, "dimension must be positive",
			errors.Field("dimension", dimension))
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreDatabaseFailure, "opening sqlite db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.CodeStoreDatabaseFailure, "pinging sqlite db")
	}

	if err := migrateVector(db, dimension); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &VectorIndex{db: db, dimension: dimension}, nil
}

func migrateVector(db *sql.DB, dimension int) error {
	const metaDDL = `
CREATE TABLE IF NOT EXISTS index_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`
	if _, err := db.Exec(metaDDL); err != nil {
		return errors.Wrap(err, errors.CodeStoreDatabaseFailure, "creating index_meta table")
	}

	var stored string
	err := db.QueryRow(`SELECT value FROM index_meta WHERE key = 'dimension'`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		if _, err := db.Exec(`INSERT INTO index_meta(key, value) VALUES ('dimension', ?)`,
			strconv.Itoa(dimension)); err != nil {
			return errors.Wrap(err, errors.CodeStoreDatabaseFailure, "recording index dimension")
		}
	case err != nil:
		return errors.Wrap(err, errors.CodeStoreDatabaseFailure, "reading index dimension")
	default:
		if stored != strconv.Itoa(dimension) {
			return errors.New(errors.CodeStoreDimensionMismatch, "index was created with a different dimension",
				errors.Field("stored", stored),
				errors.Field("configured", dimension))
		}
	}

	const chunkDDL = `
CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT NOT NULL UNIQUE,
	document_id TEXT NOT NULL,
	position    INTEGER NOT NULL,
	text        TEXT NOT NULL
)`
	if _, err := db.Exec(chunkDDL); err != nil {
		return errors.Wrap(err, errors.CodeStoreDatabaseFailure, "creating chunks table")
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id)`); err != nil {
		return errors.Wrap(err, errors.CodeStoreDatabaseFailure, "creating chunks document index")
	}

	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunk_vectors USING vec0(embedding float[%d] distance_metric=cosine)`,
		dimension,
	)
	if _, err := db.Exec(vecDDL); err != nil {
		return errors.Wrap(err, errors.CodeStoreDatabaseFailure, "creating chunk_vectors virtual table")
	}

	return nil
}

// InsertAll stores a batch of chunks in one transaction. A failure anywhere
// rolls back the whole batch.
func (v *VectorIndex) InsertAll(ctx context.Context, chunks []store.Chunk) error {
	for _, c := range chunks {
		if len(c.Embedding) != v.dimension {
			return errors.New(errors.CodeStoreDimensionMismatch, "embedding dimension mismatch",
				errors.Field("want", v.dimension),
				errors.Field("got", len(c.Embedding)),
				errors.FieldDocument(c.DocumentID))
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreDatabaseFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range chunks {
		blob, err := sqlite_vec.SerializeFloat32(c.Embedding)
		if err != nil {
			return errors.Wrap(err, errors.CodeStoreDatabaseFailure, "serializing embedding")
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO chunks(id, document_id, position, text) VALUES (?, ?, ?, ?)`,
			c.ID, c.DocumentID, c.Position, c.Text)
		if err != nil {
			return errors.Wrap(err, errors.CodeStoreDatabaseFailure, "inserting chunk",
				errors.FieldDocument(c.DocumentID))
		}
		rowid, err := res.LastInsertId()
		if err != nil {
			return errors.Wrap(err, errors.CodeStoreDatabaseFailure, "reading chunk rowid")
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunk_vectors(rowid, embedding) VALUES (?, ?)`,
			rowid, blob); err != nil {
			return errors.Wrap(err, errors.CodeStoreDatabaseFailure, "inserting chunk vector",
				errors.FieldDocument(c.DocumentID))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CodeStoreDatabaseFailure, "committing chunk batch")
	}
	return nil
}

// Query runs a k-nearest-neighbor search. Scores are cosine similarity in
// [-1, 1], higher is closer; ties resolve in insertion order.
func (v *VectorIndex) Query(ctx context.Context, embedding []float32, k int) ([]store.Result, error) {
	if len(embedding) != v.dimension {
		return nil, errors.New(errors.CodeStoreDimensionMismatch, "query dimension mismatch",
			errors.Field("want", v.dimension),
			errors.Field("got", len(embedding)))
	}
	if k <= 0 {
		return nil, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreDatabaseFailure, "serializing query vector")
	}

	const q = `SELECT c.text, cv.distance, c.document_id, c.position
FROM chunk_vectors cv
JOIN chunks c ON c.rowid = cv.rowid
WHERE cv.embedding MATCH ? AND k = ?
ORDER BY cv.distance, c.rowid`

	rows, err := v.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreDatabaseFailure, "searching chunk vectors")
	}
	defer func() { _ = rows.Close() }()

	var results []store.Result
	for rows.Next() {
		var r store.Result
		var distance float64
		if err := rows.Scan(&r.Text, &distance, &r.DocumentID, &r.Position); err != nil {
			return nil, errors.Wrap(err, errors.CodeStoreDatabaseFailure, "scanning chunk result")
		}
		r.Score = 1 - distance
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreDatabaseFailure, "iterating chunk results")
	}

	return results, nil
}

// HasDocument reports whether any chunk of the document is indexed.
func (v *VectorIndex) HasDocument(ctx context.Context, documentID string) (bool, error) {
	var one int
	err := v.db.QueryRowContext(ctx,
		`SELECT 1 FROM chunks WHERE document_id = ? LIMIT 1`, documentID).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, errors.Wrap(err, errors.CodeStoreDatabaseFailure, "checking document",
			errors.FieldDocument(documentID))
	}
	return true, nil
}

// Documents lists indexed documents with their chunk counts, in first-seen
// order.
func (v *VectorIndex) Documents(ctx context.Context) ([]store.DocumentStat, error) {
	const q = `SELECT document_id, COUNT(*) FROM chunks GROUP BY document_id ORDER BY MIN(rowid)`

	rows, err := v.db.QueryContext(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreDatabaseFailure, "listing documents")
	}
	defer func() { _ = rows.Close() }()

	var stats []store.DocumentStat
	for rows.Next() {
		var s store.DocumentStat
		if err := rows.Scan(&s.DocumentID, &s.Chunks); err != nil {
			return nil, errors.Wrap(err, errors.CodeStoreDatabaseFailure, "scanning document stat")
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreDatabaseFailure, "iterating document stats")
	}
	return stats, nil
}

// ClearAll removes every chunk and vector from the index.
func (v *VectorIndex) ClearAll(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreDatabaseFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_vectors`); err != nil {
		return errors.Wrap(err, errors.CodeStoreDatabaseFailure, "clearing chunk vectors")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return errors.Wrap(err, errors.CodeStoreDatabaseFailure, "clearing chunks")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CodeStoreDatabaseFailure, "committing clear")
	}
	return nil
}

// Close closes the underlying database connection.
func (v *VectorIndex) Close() error {
	return v.db.Close()
}
