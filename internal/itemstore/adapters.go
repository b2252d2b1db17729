// Copyright 2025 James Ross
package itemstore

import (
	"context"
	"sync"
)

// MemoryVectorStore is an in-process VectorStore for the embedding worker;
// the real vector database is out of scope (spec.md §1 Non-goals treat the
// relational store abstractly).
type MemoryVectorStore struct {
	mu      sync.Mutex
	vectors map[string][]float64
}

func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{vectors: make(map[string][]float64)}
}

func (v *MemoryVectorStore) Put(_ context.Context, ref string, vector []float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vectors[ref] = vector
	return nil
}

func (v *MemoryVectorStore) Get(ref string) ([]float64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	vec, ok := v.vectors[ref]
	return vec, ok
}
