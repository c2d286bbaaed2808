// Package auth is the credential store: it owns the in-memory account set,
// performs registration and login checks, and mirrors every successful
// registration through the persistence backend.
package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vovakirdan/linechat-server/internal/store"
)

var (
	// ErrDuplicateID is returned when registering an id that already exists.
	ErrDuplicateID = errors.New("user id already registered")
	// ErrInvalidCredentials is returned when id and password don't match.
	// Unknown ids and wrong passwords are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service provides account registration and authentication. All methods are
// safe for concurrent use; registration's existence check, in-memory insert,
// and write-through persist run as one critical section.
type Service struct {
	mu       sync.Mutex
	accounts map[string]store.Account
	backend  store.Backend
}

// NewService creates a credential service over the given backend. Call Load
// before serving connections.
func NewService(backend store.Backend) *Service {
	return &Service{
		accounts: make(map[string]store.Account),
		backend:  backend,
	}
}

// Load populates the in-memory set from the backend. An empty backend is a
// valid fresh start.
func (s *Service) Load(ctx context.Context) error {
	accounts, err := s.backend.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range accounts {
		s.accounts[a.UserID] = a
	}
	return nil
}

// Count reports the number of registered accounts.
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

// IsAvailable reports whether no account exists for id.
func (s *Service) IsAvailable(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.accounts[id]
	return !exists
}

// Register creates and persists a new account. It fails with ErrDuplicateID
// if the id is taken. If persisting fails the in-memory insert is rolled
// back, so the store and its backend never diverge.
func (s *Service) Register(ctx context.Context, id, password, displayName, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[id]; exists {
		return ErrDuplicateID
	}

	salt, err := generateSalt()
	if err != nil {
		return err
	}

	s.accounts[id] = store.Account{
		UserID:      id,
		DisplayName: displayName,
		Email:       email,
		SaltHex:     hex.EncodeToString(salt),
		HashHex:     hex.EncodeToString(hashPassword(salt, password)),
	}

	if err := s.backend.SaveAll(ctx, s.snapshotLocked()); err != nil {
		delete(s.accounts, id)
		return fmt.Errorf("persist accounts: %w", err)
	}
	return nil
}

// Authenticate recomputes the salted hash for the supplied password and
// compares it against the stored digest in constant time. On mismatch of
// either id or password it returns ErrInvalidCredentials.
func (s *Service) Authenticate(id, password string) (store.Account, error) {
	s.mu.Lock()
	account, exists := s.accounts[id]
	s.mu.Unlock()
	if !exists {
		return store.Account{}, ErrInvalidCredentials
	}

	salt, err := hex.DecodeString(account.SaltHex)
	if err != nil {
		return store.Account{}, ErrInvalidCredentials
	}
	stored, err := hex.DecodeString(account.HashHex)
	if err != nil {
		return store.Account{}, ErrInvalidCredentials
	}

	if !hashEqual(hashPassword(salt, password), stored) {
		return store.Account{}, ErrInvalidCredentials
	}
	return account, nil
}

// snapshotLocked renders the account set as a sorted slice for persistence.
// Callers must hold mu.
func (s *Service) snapshotLocked() []store.Account {
	accounts := make([]store.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].UserID < accounts[j].UserID })
	return accounts
}
