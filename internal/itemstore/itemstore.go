// Copyright 2025 James Ross

// Package itemstore is a minimal abstraction over the relational Items
// table the worker bodies persist their outcomes onto. The real schema
// (optimization/conversion/embedding/cluster child tables, spec.md §6
// "Persistence layout") is explicitly out of scope: this package exposes
// only the narrow read/write surface the worker bodies need.
package itemstore

import (
	"context"
	"sync"
	"time"

	"github.com/asyncforge/contentcore/internal/job"
)

// Item is the subset of item state worker bodies read or write.
type Item struct {
	ID               string
	Content          string
	Classification   *job.ClassificationResult
	Optimization     *job.OptimizationResult
	OptimizedAt      *time.Time
	Canonical        bool
	CanonicalID      string
	EmbeddingRef     string
	FolderSuggestion string
}

// Store is the abstract entity store worker bodies depend on.
type Store interface {
	Get(ctx context.Context, id string) (Item, bool, error)
	Upsert(ctx context.Context, item Item) error
	List(ctx context.Context) ([]Item, error)
}

// MemoryStore is an in-process Store for tests and single-node deployments
// without a wired relational backend.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]Item
}

func NewMemory() *MemoryStore {
	return &MemoryStore{items: make(map[string]Item)}
}

func (m *MemoryStore) Get(_ context.Context, id string) (Item, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	return it, ok, nil
}

func (m *MemoryStore) Upsert(_ context.Context, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.items[item.ID]
	if ok {
		if item.Content == "" {
			item.Content = existing.Content
		}
	}
	m.items[item.ID] = item
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Item, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	return out, nil
}
