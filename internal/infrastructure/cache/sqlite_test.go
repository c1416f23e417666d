// Copyright The BMLT Project contributors.
// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmlt-enabled/bmlt-client-go/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "&weekdays[]=2", []byte(`[{"id_bigint":"555"}]`)))

	payload, err := store.Get(ctx, "&weekdays[]=2")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id_bigint":"555"}]`, string(payload))
}

func TestGetMissingQuery(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "&formats[]=1")
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}

func TestPutOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "q", []byte(`[]`)))
	require.NoError(t, store.Put(ctx, "q", []byte(`[{"id_bigint":"1"}]`)))

	payload, err := store.Get(ctx, "q")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id_bigint":"1"}]`, string(payload))
}

func TestPrune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "old", []byte(`[]`)))
	require.NoError(t, store.Put(ctx, "new", []byte(`[]`)))

	// Everything just written is older than a future cutoff.
	removed, err := store.Prune(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = store.Get(ctx, "old")
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "q", []byte(`[1,2,3]`)))
	require.NoError(t, store.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	payload, err := reopened.Get(ctx, "q")
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2,3]`, string(payload))
}
