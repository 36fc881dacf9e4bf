package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// FileTokenStore keeps the token in a single file readable only by the
// current user. Writes go through a temp file and rename so a crash never
// leaves a truncated token behind.
type FileTokenStore struct {
	path string
	mu   sync.Mutex
}

// NewFileTokenStore creates a store writing to path. The parent directory
// is created on first Save.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Path returns the token file location.
func (s *FileTokenStore) Path() string {
	return s.path
}

// Load reads the persisted token.
func (s *FileTokenStore) Load(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrTokenNotFound
		}
		return "", fmt.Errorf("failed to read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrTokenNotFound
	}
	return token, nil
}

// Save overwrites the persisted token.
func (s *FileTokenStore) Save(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set token permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}

	log.Debug().Str("path", s.path).Msg("Token persisted")
	return nil
}

// Delete removes the persisted token. Missing files are not an error.
func (s *FileTokenStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete token file: %w", err)
	}
	return nil
}

// Ping checks that the token directory is usable.
func (s *FileTokenStore) Ping(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("token directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("token directory %s is not a directory", dir)
	}
	return nil
}
