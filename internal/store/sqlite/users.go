// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

package sqlite

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/contextd-dev/contextd/internal/store"
	"github.com/contextd-dev/contextd/pkg/errors"
)

// Compile-time interface check.
var _ store.CredentialStore = (*CredentialStore)(nil)

// CredentialStore implements store.CredentialStore backed by SQLite.
type CredentialStore struct {
	db *sql.DB
}

// NewCredentialStore opens (or creates) the users database at dbPath.
func NewCredentialStore(dbPath string) (*CredentialStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreDatabaseFailure, "opening sqlite db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.CodeStoreDatabaseFailure, "pinging sqlite db")
	}

	const ddl = `
CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	role          TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
)`
	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.CodeStoreDatabaseFailure, "creating users table")
	}

	return &CredentialStore{db: db}, nil
}

// Upsert creates or replaces the user record.
func (c *CredentialStore) Upsert(ctx context.Context, user store.User, passwordHash string) error {
	const q = `INSERT INTO users(username, role, password_hash) VALUES (?, ?, ?)
ON CONFLICT(username) DO UPDATE SET
	role = excluded.role,
	password_hash = excluded.password_hash,
	updated_at = datetime('now')`

	if _, err := c.db.ExecContext(ctx, q, user.Username, user.Role, passwordHash); err != nil {
		return errors.Wrap(err, errors.CodeStoreDatabaseFailure, "upserting user",
			errors.FieldUser(user.Username))
	}
	return nil
}

// Lookup returns the user and its password hash.
func (c *CredentialStore) Lookup(ctx context.Context, username string) (store.User, string, error) {
	const q = `SELECT username, role, password_hash FROM users WHERE username = ?`

	var user store.User
	var hash string
	err := c.db.QueryRowContext(ctx, q, username).Scan(&user.Username, &user.Role, &hash)
	switch {
	case err == sql.ErrNoRows:
		return store.User{}, "", errors.New(errors.CodeStoreUserNotFound, "user not found",
			errors.FieldUser(username))
	case err != nil:
		return store.User{}, "", errors.Wrap(err, errors.CodeStoreDatabaseFailure, "looking up user",
			errors.FieldUser(username))
	}
	return user, hash, nil
}

// Close closes the underlying database connection.
func (c *CredentialStore) Close() error {
	return c.db.Close()
}
