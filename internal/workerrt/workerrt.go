// Copyright 2025 James Ross
package workerrt

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/asyncforge/contentcore/internal/broker"
	"github.com/asyncforge/contentcore/internal/eventbus"
	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/jobschema"
	"github.com/asyncforge/contentcore/internal/progresscache"
	"github.com/asyncforge/contentcore/internal/jobstore"
	"go.uber.org/zap"
)

// ReportProgress is handed to a worker body so it can surface incremental
// progress without reaching into the Progress Cache or Event Bus directly.
type ReportProgress func(percentage int, message string, data interface{})

// ProcessFunc is a worker body: the "process(payload, report_progress)"
// function named in spec.md §4.5. It returns the job's result payload or an
// error. A *jobschema.ValidationError returned here (or detected by the
// runtime before invocation) is non-retryable.
type ProcessFunc func(ctx context.Context, j job.Job, report ReportProgress) (json.RawMessage, error)

// Definition binds a job type to its worker body and declared concurrency.
type Definition struct {
	Type           job.Type
	MaxConcurrency int
	Process        ProcessFunc
}

const defaultPollInterval = 50 * time.Millisecond

// Runtime wraps every worker invocation with the uniform envelope described
// in spec.md §4.5: transition to processing, install a progress callback,
// invoke the body, then transition to completed/retry/failed. Grounded on
// the teacher's worker.go processJob, generalized from a single Redis
// BRPOPLPUSH consumer to polling the in-memory Broker per registered type.
type Runtime struct {
	store    jobstore.Store
	br       *broker.Broker
	bus      *eventbus.Bus
	progress *progresscache.Cache
	log      *zap.Logger

	defs         map[job.Type]Definition
	pollInterval time.Duration
}

func New(store jobstore.Store, br *broker.Broker, bus *eventbus.Bus, progress *progresscache.Cache, log *zap.Logger) *Runtime {
	return &Runtime{
		store:        store,
		br:           br,
		bus:          bus,
		progress:     progress,
		log:          log,
		defs:         make(map[job.Type]Definition),
		pollInterval: defaultPollInterval,
	}
}

// Register declares a worker body for a job type, registering its
// concurrency cap with the Broker.
func (r *Runtime) Register(def Definition) {
	if def.MaxConcurrency <= 0 {
		def.MaxConcurrency = 1
	}
	r.defs[def.Type] = def
	r.br.RegisterType(def.Type, def.MaxConcurrency)
}

// Run starts one polling loop per registered job type and blocks until ctx
// is cancelled. Each loop dispatches as many jobs as the Broker's
// concurrency cap allows, handling each in its own goroutine.
func (r *Runtime) Run(ctx context.Context) {
	done := make(chan struct{})
	for typ, def := range r.defs {
		go r.runType(ctx, typ, def, done)
	}
	<-ctx.Done()
}

func (r *Runtime) runType(ctx context.Context, typ job.Type, def Definition, _ chan struct{}) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				jobID, ok := r.br.Dispatch(typ)
				if !ok {
					break
				}
				go r.handle(ctx, typ, def, jobID)
			}
		}
	}
}

func (r *Runtime) handle(ctx context.Context, typ job.Type, def Definition, jobID string) {
	j, found, err := r.store.Get(ctx, jobID)
	if err != nil || !found {
		r.log.Error("worker runtime: job vanished before dispatch", zap.String("jobId", jobID), zap.Error(err))
		r.br.Ack(typ, jobID)
		return
	}

	if verr := jobschema.Validate(typ, j.Payload); verr != nil {
		r.failTerminal(ctx, typ, j, nil, verr.Error())
		return
	}

	if err := r.store.UpdateStatus(ctx, j.ID, job.StatusProcessing, nil, ""); err != nil {
		r.log.Error("worker runtime: transition to processing failed", zap.String("jobId", j.ID), zap.Error(err))
	}
	r.bus.Publish(eventbus.Event{Kind: eventbus.KindJobStarted, JobID: j.ID, TargetUser: j.UserID, Timestamp: time.Now()})

	report := func(percentage int, message string, data interface{}) {
		r.progress.Put(j.ID, progresscache.Progress{Percentage: percentage, Message: message, Data: data})
		r.bus.Publish(eventbus.Event{
			Kind:       eventbus.KindJobProgress,
			JobID:      j.ID,
			TargetUser: j.UserID,
			Data:       map[string]interface{}{"percentage": percentage, "message": message, "data": data},
			Timestamp:  time.Now(),
		})
	}

	result, procErr := def.Process(ctx, j, report)
	if procErr == nil {
		if err := r.store.UpdateStatus(ctx, j.ID, job.StatusCompleted, result, ""); err != nil {
			r.log.Error("worker runtime: transition to completed failed", zap.String("jobId", j.ID), zap.Error(err))
		}
		r.bus.Publish(eventbus.Event{Kind: eventbus.KindJobCompleted, JobID: j.ID, TargetUser: j.UserID, Data: result, Timestamp: time.Now()})
		r.br.Ack(typ, j.ID)
		return
	}

	var verr *jobschema.ValidationError
	if errors.As(procErr, &verr) {
		r.failTerminal(ctx, typ, j, result, procErr.Error())
		return
	}

	if j.RetryCount < j.MaxRetries {
		retryCount, err := r.store.IncrementRetry(ctx, j.ID)
		if err != nil {
			r.log.Error("worker runtime: increment retry failed", zap.String("jobId", j.ID), zap.Error(err))
		}
		if err := r.store.UpdateStatus(ctx, j.ID, job.StatusRetry, result, procErr.Error()); err != nil {
			r.log.Error("worker runtime: transition to retry failed", zap.String("jobId", j.ID), zap.Error(err))
		}
		r.bus.Publish(eventbus.Event{Kind: eventbus.KindJobRetry, JobID: j.ID, TargetUser: j.UserID, Data: procErr.Error(), Timestamp: time.Now()})
		r.br.Requeue(typ, j.ID, j.Priority, retryCount)
		return
	}
	r.failTerminal(ctx, typ, j, result, procErr.Error())
}

// failTerminal transitions a job directly to failed (skipping retry) and
// frees its Broker slot without requeueing — used both for schema
// validation failures (non-retryable by definition, spec.md §4.5) and for
// jobs that have exhausted their retry budget. A worker body that fails
// partway through a multi-step sequence (the intelligence_pipeline
// interpreter) may still return a non-nil partial result, which is
// persisted alongside the failure.
func (r *Runtime) failTerminal(ctx context.Context, typ job.Type, j job.Job, partial json.RawMessage, errMsg string) {
	if err := r.store.UpdateStatus(ctx, j.ID, job.StatusFailed, partial, errMsg); err != nil {
		r.log.Error("worker runtime: transition to failed failed", zap.String("jobId", j.ID), zap.Error(err))
	}
	r.bus.Publish(eventbus.Event{Kind: eventbus.KindJobFailed, JobID: j.ID, TargetUser: j.UserID, Data: errMsg, Timestamp: time.Now()})
	r.br.Discard(typ, j.ID)
}
