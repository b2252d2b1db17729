// Copyright 2025 James Ross
package jobstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/asyncforge/contentcore/internal/job"
)

// MemoryStore is an in-process Store, grounded on the teacher's in-memory
// idempotency map pattern (exactly-once-patterns/memory_storage.go): one
// guarding mutex, plain maps, no background eviction beyond
// DeleteCompletedBefore, which the Queue Manager calls in its shutdown
// sweep and the admin purge command calls on demand.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]job.Job
}

func NewMemory() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]job.Job)}
}

func (m *MemoryStore) Create(_ context.Context, j job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[j.ID] = j
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (job.Job, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	return j, ok, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id string, status job.Status, result json.RawMessage, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	now := time.Now().UTC()
	if status == job.StatusProcessing && j.StartedAt == nil {
		started := now
		j.StartedAt = &started
	}
	if status.Terminal() && j.CompletedAt == nil {
		completed := now
		j.CompletedAt = &completed
	}
	j.Status = status
	if result != nil {
		j.Result = result
	}
	if errMsg != "" {
		j.Error = errMsg
	}
	m.jobs[id] = j
	return nil
}

func (m *MemoryStore) IncrementRetry(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return 0, &NotFoundError{ID: id}
	}
	j.RetryCount++
	m.jobs[id] = j
	return j.RetryCount, nil
}

func (m *MemoryStore) ListByStatus(_ context.Context, status job.Status, limit int) ([]job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []job.Job
	for _, j := range m.jobs {
		if j.Status == status {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return capJobs(out, limit), nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID string, limit int) ([]job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []job.Job
	for _, j := range m.jobs {
		if j.UserID == userID {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return capJobs(out, limit), nil
}

func (m *MemoryStore) DeleteCompletedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, j := range m.jobs {
		if !j.Status.Terminal() {
			continue
		}
		if j.CompletedAt == nil || !j.CompletedAt.Before(cutoff) {
			continue
		}
		delete(m.jobs, id)
		deleted++
	}
	return deleted, nil
}

func capJobs(jobs []job.Job, limit int) []job.Job {
	if limit > 0 && len(jobs) > limit {
		return jobs[:limit]
	}
	return jobs
}
