// Package store defines the persisted shape of user accounts and the backend
// contract the credential service writes through to.
package store

import "context"

// Account is one registered user. Accounts are immutable after registration;
// the only mutation the system performs is appending new ones.
type Account struct {
	UserID      string
	DisplayName string
	Email       string
	SaltHex     string // 16 random bytes, lowercase hex
	HashHex     string // SHA-256(salt ‖ password), lowercase hex
}

// Backend persists the complete account set. The credential service keeps the
// authoritative copy in memory and mirrors it through SaveAll after every
// successful registration, so backends only ever see whole-set writes.
type Backend interface {
	// LoadAll reads every persisted account. A backend with no prior data
	// returns an empty set, not an error.
	LoadAll(ctx context.Context) ([]Account, error)

	// SaveAll replaces the persisted set with accounts. The write must be
	// all-or-nothing: on error the previously persisted set is still intact.
	SaveAll(ctx context.Context, accounts []Account) error

	// Close releases the backend's underlying resources.
	Close() error
}
