package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errorskg "github.com/sweetpotato0/agentgate/errors"
	"github.com/sweetpotato0/agentgate/state"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s state.Store, key string) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx, key)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errorskg.ErrNotFound), "missing key should be ErrNotFound, got %v", err)

	require.NoError(t, s.Save(ctx, key, []byte(`{"walletId":"w1"}`)))
	got, err := s.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"walletId":"w1"}`, string(got))

	require.NoError(t, s.Save(ctx, key, []byte(`{"walletId":"w2"}`)))
	got, err = s.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"walletId":"w2"}`, string(got))

	err = s.Save(ctx, "", []byte("x"))
	assert.True(t, errors.Is(err, errorskg.ErrInvalidInput))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	exerciseStore(t, s, "wallet")
}

func TestMemoryStoreCopiesData(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	data := []byte("abc")
	require.NoError(t, s.Save(ctx, "k", data))
	data[0] = 'z'

	got, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}
