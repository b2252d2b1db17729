// Copyright 2025 James Ross
package itemstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetUpsertRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Upsert(ctx, Item{ID: "a", Content: "hello world"}))
	got, found, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "hello world", got.Content)
}

func TestMemoryStoreUpsertPreservesContentWhenOmitted(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.Upsert(ctx, Item{ID: "a", Content: "original"}))

	require.NoError(t, store.Upsert(ctx, Item{ID: "a", Canonical: true}))
	got, found, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "original", got.Content, "upsert without content must not blank out an existing item")
	assert.True(t, got.Canonical)
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.Upsert(ctx, Item{ID: "a", Content: "one"}))
	require.NoError(t, store.Upsert(ctx, Item{ID: "b", Content: "two"}))

	items, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestMemoryVectorStorePutGet(t *testing.T) {
	ctx := context.Background()
	v := NewMemoryVectorStore()

	_, ok := v.Get("missing")
	assert.False(t, ok)

	require.NoError(t, v.Put(ctx, "ref-1", []float64{0.1, 0.2, 0.3}))
	vec, ok := v.Get("ref-1")
	require.True(t, ok)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
}
