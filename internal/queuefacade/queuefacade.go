// Copyright 2025 James Ross

// Package queuefacade implements spec.md §4.6: a thin stable API over the
// Broker, Job Store and Progress Cache. Every operation here is idempotent
// where meaningful, and the Façade is the lowest layer callers should ever
// talk to directly — the Queue Manager builds on top of it, never around it.
package queuefacade

import (
	"context"
	"encoding/json"
	"time"

	"github.com/asyncforge/contentcore/internal/broker"
	"github.com/asyncforge/contentcore/internal/eventbus"
	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/jobstore"
	"github.com/asyncforge/contentcore/internal/progresscache"
	"github.com/google/uuid"
)

// Facade is the stable entry point described in spec.md §4.6.
type Facade struct {
	Store    jobstore.Store
	Broker   *broker.Broker
	Progress *progresscache.Cache
	Bus      *eventbus.Bus
}

func New(store jobstore.Store, br *broker.Broker, progress *progresscache.Cache, bus *eventbus.Bus) *Facade {
	return &Facade{Store: store, Broker: br, Progress: progress, Bus: bus}
}

// AddJob creates a Store record and submits it to the Broker for dispatch.
// The returned id always equals the Store id (spec.md §4.6).
func (f *Facade) AddJob(ctx context.Context, typ job.Type, priority job.Priority, userID string, payload interface{}) (string, error) {
	id := uuid.NewString()
	j, err := job.New(id, typ, priority, userID, payload)
	if err != nil {
		return "", err
	}
	if err := f.Store.Create(ctx, j); err != nil {
		return "", err
	}
	f.Broker.Submit(typ, id, priority, 0)
	f.Bus.Publish(eventbus.Event{Kind: eventbus.KindJobCreated, JobID: id, TargetUser: userID, Timestamp: time.Now()})
	return id, nil
}

// GetJob returns the Store's current record for id.
func (f *Facade) GetJob(ctx context.Context, id string) (job.Job, bool, error) {
	return f.Store.Get(ctx, id)
}

// UpdateStatus transitions a job's status. A no-op transition to the job's
// current status still succeeds without side effects beyond the Store's own
// idempotent write (spec.md §4.6).
func (f *Facade) UpdateStatus(ctx context.Context, id string, status job.Status, result json.RawMessage, errMsg string) error {
	current, found, err := f.Store.Get(ctx, id)
	if err != nil {
		return err
	}
	if found && current.Status == status {
		return nil
	}
	return f.Store.UpdateStatus(ctx, id, status, result, errMsg)
}

// GetJobProgress returns the most recent progress tuple, or ok=false when
// none has been recorded yet (spec.md §4.6 "returns null when none exists").
func (f *Facade) GetJobProgress(id string) (progresscache.Progress, bool) {
	return f.Progress.Get(id)
}

// Cancel removes a still-pending job from the Broker and marks it failed
// with reason "cancelled" (spec.md §5 Cancellation). If the job is already
// dispatched, Cancel has no effect on the in-flight body; the terminal
// transition it eventually records stands.
func (f *Facade) Cancel(ctx context.Context, id string) error {
	j, found, err := f.Store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return &jobstore.NotFoundError{ID: id}
	}
	if j.Status.Terminal() {
		return nil
	}
	if f.Broker.Remove(j.Type, id) {
		return f.Store.UpdateStatus(ctx, id, job.StatusFailed, nil, "cancelled")
	}
	return nil
}
