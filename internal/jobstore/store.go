// Copyright 2025 James Ross
package jobstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/asyncforge/contentcore/internal/job"
)

// Store is the durable record of every Job ever created (spec.md §4.2). All
// operations are serializable against any single job id; the store is
// authoritative for status queries older than one worker cycle.
type Store interface {
	Create(ctx context.Context, j job.Job) error
	Get(ctx context.Context, id string) (job.Job, bool, error)
	// UpdateStatus is atomic; it also sets StartedAt on first move to
	// processing and CompletedAt on any terminal move.
	UpdateStatus(ctx context.Context, id string, status job.Status, result json.RawMessage, errMsg string) error
	IncrementRetry(ctx context.Context, id string) (int, error)
	ListByStatus(ctx context.Context, status job.Status, limit int) ([]job.Job, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]job.Job, error)
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotFoundError is returned by Get-adjacent helpers that require presence; Get
// itself signals absence via its bool return rather than an error, matching
// the Façade's "returns null when none exists" contract.
type NotFoundError struct{ ID string }

func (e *NotFoundError) Error() string { return "jobstore: job not found: " + e.ID }
