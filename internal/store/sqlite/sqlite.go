// Package sqlite is an alternative account backend for deployments that
// prefer a database file over the flat text format.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/linechat-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	user_id      TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	email        TEXT NOT NULL,
	salt_hex     TEXT NOT NULL,
	hash_hex     TEXT NOT NULL
);
`

// Backend implements store.Backend on a SQLite database.
type Backend struct {
	db *sql.DB
}

// New opens (creating if necessary) the database at dbPath and ensures the
// accounts table exists.
func New(dbPath string) (*Backend, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Backend{db: db}, nil
}

// LoadAll reads every account row.
func (b *Backend) LoadAll(ctx context.Context) ([]store.Account, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT user_id, display_name, email, salt_hex, hash_hex
		FROM accounts
	`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []store.Account
	for rows.Next() {
		var a store.Account
		if err := rows.Scan(&a.UserID, &a.DisplayName, &a.Email, &a.SaltHex, &a.HashHex); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// SaveAll replaces the table contents in one transaction, matching the
// whole-set write contract of the flat file backend.
func (b *Backend) SaveAll(ctx context.Context, accounts []store.Account) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}
	for _, a := range accounts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (user_id, display_name, email, salt_hex, hash_hex)
			VALUES (?, ?, ?, ?, ?)
		`, a.UserID, a.DisplayName, a.Email, a.SaltHex, a.HashHex)
		if err != nil {
			return fmt.Errorf("insert account %q: %w", a.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit accounts: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (b *Backend) Close() error {
	return b.db.Close()
}
