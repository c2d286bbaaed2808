// Package flatfile persists accounts as a tab-separated text file, one record
// per line: userId, displayName, email, saltHex, hashHex. The file is fully
// rewritten on every save; there is no append-only log.
package flatfile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vovakirdan/linechat-server/internal/store"
)

const fieldsPerRecord = 5

// Backend is a file-backed store.Backend.
type Backend struct {
	path string
}

// New creates a backend writing to path. The file itself is created lazily on
// the first save.
func New(path string) *Backend {
	return &Backend{path: path}
}

// LoadAll reads all well-formed records from the file. A missing file yields
// an empty set; malformed lines are skipped without error.
func (b *Backend) LoadAll(_ context.Context) ([]store.Account, error) {
	f, err := os.Open(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open account file: %w", err)
	}
	defer f.Close()

	var accounts []store.Account
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		parts := strings.Split(sc.Text(), "\t")
		if len(parts) != fieldsPerRecord {
			continue
		}
		accounts = append(accounts, store.Account{
			UserID:      parts[0],
			DisplayName: parts[1],
			Email:       parts[2],
			SaltHex:     parts[3],
			HashHex:     parts[4],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read account file: %w", err)
	}
	return accounts, nil
}

// SaveAll rewrites the whole file. The write goes through a temp file in the
// same directory followed by a rename, so a failed save leaves the previous
// file intact.
func (b *Backend) SaveAll(_ context.Context, accounts []store.Account) error {
	var sb strings.Builder
	for _, a := range accounts {
		sb.WriteString(a.UserID)
		sb.WriteByte('\t')
		sb.WriteString(a.DisplayName)
		sb.WriteByte('\t')
		sb.WriteString(a.Email)
		sb.WriteByte('\t')
		sb.WriteString(a.SaltHex)
		sb.WriteByte('\t')
		sb.WriteString(a.HashHex)
		sb.WriteByte('\n')
	}

	dir := filepath.Dir(b.path)
	f, err := os.CreateTemp(dir, filepath.Base(b.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp account file: %w", err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.WriteString(sb.String()); err != nil {
		_ = f.Close()
		return fmt.Errorf("write account file: %w", err)
	}
	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		return fmt.Errorf("chmod account file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close account file: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		return fmt.Errorf("replace account file: %w", err)
	}
	return nil
}

// Close is a no-op; the backend holds no open handles between calls.
func (b *Backend) Close() error {
	return nil
}
