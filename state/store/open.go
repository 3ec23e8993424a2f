// Package store provides the state.Store backends selectable through
// STATE_BACKEND.
package store

import (
	"context"
	"fmt"

	"github.com/sweetpotato0/agentgate/config"
	errorskg "github.com/sweetpotato0/agentgate/errors"
	"github.com/sweetpotato0/agentgate/state"
)

// Open returns the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StateConfig) (state.Store, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		return NewFileStore(cfg.Dir), nil
	case config.BackendRedis:
		s, err := NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return nil, openError(cfg.Backend, err)
		}
		return s, nil
	case config.BackendPostgres:
		s, err := NewPostgresStore(ctx, cfg.Postgres)
		if err != nil {
			return nil, openError(cfg.Backend, err)
		}
		return s, nil
	case config.BackendMongo:
		s, err := NewMongoStore(ctx, cfg.Mongo)
		if err != nil {
			return nil, openError(cfg.Backend, err)
		}
		return s, nil
	case config.BackendBolt:
		s, err := NewBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, openError(cfg.Backend, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q: %w", cfg.Backend, errorskg.ErrInvalidInput)
	}
}

func openError(backend string, err error) error {
	return fmt.Errorf("open %s state store: %w", backend, err)
}
