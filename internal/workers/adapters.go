// Copyright 2025 James Ross
package workers

import (
	"context"
	"fmt"

	"github.com/asyncforge/contentcore/internal/itemstore"
)

// StoreCandidateSource adapts an itemstore.Store into the context_assembly
// worker's candidate pool: every item in the store is a candidate, since
// this module has no separate search index (SPEC_FULL.md §4.5.e Non-goals).
type StoreCandidateSource struct {
	Items itemstore.Store
}

func (s StoreCandidateSource) Candidates(ctx context.Context, _ string) ([]CandidateItem, error) {
	items, err := s.Items.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CandidateItem, 0, len(items))
	for _, it := range items {
		out = append(out, CandidateItem{ID: it.ID, Content: it.Content})
	}
	return out, nil
}

// StoreContentResolver adapts an itemstore.Store into the
// semantic_clustering worker's ItemContent dependency.
type StoreContentResolver struct {
	Items itemstore.Store
}

func (r StoreContentResolver) Content(ctx context.Context, itemID string) (string, error) {
	item, found, err := r.Items.Get(ctx, itemID)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("workers: item %q not found", itemID)
	}
	return item.Content, nil
}
