// Package state defines the persistence port for the opaque credential blob
// the agent factory saves after every creation.
package state

import (
	"context"
	"fmt"

	errorskg "github.com/sweetpotato0/agentgate/errors"
)

// Store persists opaque blobs by key.
type Store interface {
	// Load returns the blob stored under key. A missing key yields an error
	// wrapping errors.ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save replaces the blob stored under key.
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}

// NotFound returns the error a Store reports for a missing key.
func NotFound(key string) error {
	return fmt.Errorf("state %q: %w", key, errorskg.ErrNotFound)
}

// ValidateKey rejects keys no backend can address.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("state key cannot be empty: %w", errorskg.ErrInvalidInput)
	}
	return nil
}
