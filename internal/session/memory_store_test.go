package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSaveLookup(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Lookup(ctx, "sid")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, "sid", "user_1", time.Hour))
	identity, err := s.Lookup(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "user_1", identity)
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "sid", "user_1", time.Minute))
	require.NoError(t, s.Save(ctx, "forever", "user_2", 0))

	now = now.Add(2 * time.Minute)

	_, err := s.Lookup(ctx, "sid")
	require.ErrorIs(t, err, ErrNotFound)

	identity, err := s.Lookup(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, "user_2", identity)
}

func TestMemoryStoreCloseDropsSessions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "sid", "user_1", time.Hour))

	require.NoError(t, s.Close())

	_, err := s.Lookup(ctx, "sid")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHashIDIsStable(t *testing.T) {
	assert.Equal(t, hashID("abc"), hashID("abc"))
	assert.NotEqual(t, hashID("abc"), hashID("abd"))
	assert.Len(t, hashID("abc"), 64)
}
