package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	errorskg "github.com/sweetpotato0/agentgate/errors"
	"github.com/sweetpotato0/agentgate/state"
)

// FileStore writes each key to <dir>/<key>_data.txt, so the default key
// "wallet" lands in wallet_data.txt.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore returns a store rooted at dir. The directory is created on
// the first Save.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = "."
	}
	return &FileStore{dir: dir}
}

// Path returns the file backing key.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.dir, key+"_data.txt")
}

func (s *FileStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := validateFileKey(key); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, state.NotFound(key)
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	return data, nil
}

// Save replaces the file atomically: the blob is written to a temp file in
// the same directory and renamed over the target.
func (s *FileStore) Save(ctx context.Context, key string, data []byte) error {
	if err := validateFileKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(key)); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

func validateFileKey(key string) error {
	if err := state.ValidateKey(key); err != nil {
		return err
	}
	if filepath.Base(key) != key || key == "." || key == ".." {
		return fmt.Errorf("state key %q must be a plain file name: %w", key, errorskg.ErrInvalidInput)
	}
	return nil
}
