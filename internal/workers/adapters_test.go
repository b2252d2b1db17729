// Copyright 2025 James Ross
package workers

import (
	"context"
	"testing"

	"github.com/asyncforge/contentcore/internal/itemstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCandidateSourceListsAllItems(t *testing.T) {
	ctx := context.Background()
	items := itemstore.NewMemory()
	require.NoError(t, items.Upsert(ctx, itemstore.Item{ID: "a", Content: "alpha"}))
	require.NoError(t, items.Upsert(ctx, itemstore.Item{ID: "b", Content: "beta"}))

	var source CandidateSource = StoreCandidateSource{Items: items}
	candidates, err := source.Candidates(ctx, "ignored-domain")
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}

func TestStoreContentResolverReturnsContent(t *testing.T) {
	ctx := context.Background()
	items := itemstore.NewMemory()
	require.NoError(t, items.Upsert(ctx, itemstore.Item{ID: "a", Content: "alpha"}))

	var resolver ItemContent = StoreContentResolver{Items: items}
	content, err := resolver.Content(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "alpha", content)
}

func TestStoreContentResolverMissingItem(t *testing.T) {
	ctx := context.Background()
	resolver := StoreContentResolver{Items: itemstore.NewMemory()}

	_, err := resolver.Content(ctx, "missing")
	assert.Error(t, err)
}
