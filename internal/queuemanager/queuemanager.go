// Copyright 2025 James Ross

// Package queuemanager implements spec.md §4.7: everything the Queue Façade
// doesn't do — priority derivation, bulk operations, statistics, the health
// loop (absorbing the teacher's reaper stuck-job scan), periodic progress
// broadcast, retry-failed-jobs, and graceful shutdown.
package queuemanager

import (
	"context"
	"sync"
	"time"

	"github.com/asyncforge/contentcore/internal/broker"
	"github.com/asyncforge/contentcore/internal/eventbus"
	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/jobstore"
	"github.com/asyncforge/contentcore/internal/obs"
	"github.com/asyncforge/contentcore/internal/progresscache"
	"github.com/asyncforge/contentcore/internal/queuefacade"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// priorityTiers implements spec.md §4.7's three fixed tiers; any type not
// listed falls to low.
var priorityTiers = map[job.Type]job.Priority{
	job.TypeOptimization:    job.PriorityCritical,
	job.TypeClassification:  job.PriorityCritical,
	job.TypeConversion:      job.PriorityCritical,
	job.TypeQualityAssessment:   job.PriorityHigh,
	job.TypeContentAnalysis:     job.PriorityHigh,
	job.TypeEmbeddingGeneration: job.PriorityHigh,
	job.TypeDeduplication:       job.PriorityNormal,
	job.TypeSimilarityScoring:   job.PriorityNormal,
	job.TypeSemanticClustering:  job.PriorityNormal,
}

// DerivePriority returns the fixed tier for typ when the caller did not
// specify one.
func DerivePriority(typ job.Type) job.Priority {
	if p, ok := priorityTiers[typ]; ok {
		return p
	}
	return job.PriorityLow
}

const (
	stuckAfter       = 10 * time.Minute
	healthInterval   = "@every 30s"
	progressInterval = "@every 5s"
	shutdownDeadline = 30 * time.Second
	sweepOlderThan   = 7 * 24 * time.Hour
)

// QueueStats is one job type's slice of the system-wide statistics snapshot.
type QueueStats struct {
	Type      job.Type `json:"type"`
	Waiting   int      `json:"waiting"`
	Active    int      `json:"active"`
	Completed int64    `json:"completed"`
	Failed    int64    `json:"failed"`
}

// Statistics is the full snapshot spec.md §4.7 names.
type Statistics struct {
	Queues                map[job.Type]QueueStats `json:"queues"`
	TotalJobs             int64                   `json:"totalJobs"`
	ActiveJobs            int                     `json:"activeJobs"`
	CompletedToday        int                     `json:"completedToday"`
	FailedToday           int                     `json:"failedToday"`
	AverageProcessingSecs float64                 `json:"averageProcessingSeconds"`
}

// HealthEvent is published on the Event Bus at the end of every health
// cycle (spec.md §4.7).
type HealthEvent struct {
	Healthy        bool       `json:"healthy"`
	UnhealthyTypes []job.Type `json:"unhealthyTypes,omitempty"`
	Stats          Statistics `json:"stats"`
}

// BulkCancelResult partitions bulk_cancel outcomes (spec.md §4.7).
type BulkCancelResult struct {
	Cancelled []string `json:"cancelled"`
	Failed    []string `json:"failed"`
}

// RetryResult reports how many failed jobs were re-enqueued vs skipped.
type RetryResult struct {
	Retried int `json:"retried"`
	Skipped int `json:"skipped"`
}

// Manager owns the Façade plus two periodic loops, health check and
// progress broadcast (spec.md §4.7). Grounded on the teacher's internal/reaper (ticker-driven scan loop)
// generalized from a single Redis processing-list scan to the Broker's
// per-type stuck-job check, and on cmd/job-queue-system's supervisor
// goroutine shape for graceful shutdown.
type Manager struct {
	facade *queuefacade.Facade
	store  jobstore.Store
	br     *broker.Broker
	bus    *eventbus.Bus
	log    *zap.Logger

	cron *cron.Cron

	mu      sync.Mutex
	stopped bool
}

func New(facade *queuefacade.Facade, log *zap.Logger) *Manager {
	return &Manager{
		facade: facade,
		store:  facade.Store,
		br:     facade.Broker,
		bus:    facade.Bus,
		log:    log,
		cron:   cron.New(),
	}
}

// Run starts the health loop and progress broadcast loop and blocks until
// ctx is cancelled, at which point it performs the graceful-shutdown
// sequence described in spec.md §4.7.
func (m *Manager) Run(ctx context.Context) {
	if _, err := m.cron.AddFunc(healthInterval, func() { m.healthCheck(ctx) }); err != nil {
		m.log.Error("queuemanager: schedule health check failed", zap.Error(err))
	}
	if _, err := m.cron.AddFunc(progressInterval, func() { m.broadcastProgress(ctx) }); err != nil {
		m.log.Error("queuemanager: schedule progress broadcast failed", zap.Error(err))
	}
	m.cron.Start()

	<-ctx.Done()
	m.shutdown()
}

// BulkCreate enqueues every item and returns their ids in input order
// (spec.md §4.7).
type BulkCreateItem struct {
	Type     job.Type
	Priority job.Priority
	HasPrio  bool
	UserID   string
	Payload  interface{}
}

func (m *Manager) BulkCreate(ctx context.Context, items []BulkCreateItem) ([]string, error) {
	ids := make([]string, len(items))
	for i, it := range items {
		p := it.Priority
		if !it.HasPrio {
			p = DerivePriority(it.Type)
		}
		id, err := m.facade.AddJob(ctx, it.Type, p, it.UserID, it.Payload)
		if err != nil {
			return ids, err
		}
		ids[i] = id
	}
	return ids, nil
}

// BulkCancel cancels every listed job, partitioning the outcome.
func (m *Manager) BulkCancel(ctx context.Context, ids []string) BulkCancelResult {
	result := BulkCancelResult{}
	for _, id := range ids {
		if err := m.facade.Cancel(ctx, id); err != nil {
			result.Failed = append(result.Failed, id)
			continue
		}
		result.Cancelled = append(result.Cancelled, id)
	}
	return result
}

// Stats builds the statistics snapshot spec.md §4.7 names.
func (m *Manager) Stats(ctx context.Context) (Statistics, error) {
	stats := Statistics{Queues: make(map[job.Type]QueueStats)}
	var total int64
	var active int
	for _, typ := range m.br.RegisteredTypes() {
		ts := m.br.Stats(typ)
		stats.Queues[typ] = QueueStats{Type: typ, Waiting: ts.Waiting, Active: ts.Active, Completed: ts.Completed, Failed: ts.Failed}
		total += ts.Completed + ts.Failed + int64(ts.Waiting) + int64(ts.Active)
		active += ts.Active
	}
	stats.TotalJobs = total
	stats.ActiveJobs = active

	today := time.Now().UTC().Truncate(24 * time.Hour)
	completed, err := m.store.ListByStatus(ctx, job.StatusCompleted, 100)
	if err != nil {
		return stats, err
	}
	var durSum float64
	var durCount int
	for _, j := range completed {
		if j.CompletedAt != nil && j.CompletedAt.After(today) {
			stats.CompletedToday++
		}
		if j.StartedAt != nil && j.CompletedAt != nil {
			durSum += j.CompletedAt.Sub(*j.StartedAt).Seconds()
			durCount++
		}
	}
	if durCount > 0 {
		stats.AverageProcessingSecs = durSum / float64(durCount)
	}

	failed, err := m.store.ListByStatus(ctx, job.StatusFailed, 1000)
	if err != nil {
		return stats, err
	}
	for _, j := range failed {
		if j.CompletedAt != nil && j.CompletedAt.After(today) {
			stats.FailedToday++
		}
	}

	return stats, nil
}

// healthCheck finds stuck processing jobs, requeues them (the reaper),
// pings the broker's backing store, and publishes a health event
// (spec.md §4.7).
func (m *Manager) healthCheck(ctx context.Context) {
	processing, err := m.store.ListByStatus(ctx, job.StatusProcessing, 1000)
	if err != nil {
		m.log.Error("queuemanager: health check list processing failed", zap.Error(err))
		return
	}
	cutoff := time.Now().Add(-stuckAfter)
	unhealthySet := make(map[job.Type]bool)
	for _, j := range processing {
		if j.StartedAt == nil || !j.StartedAt.Before(cutoff) {
			continue
		}
		unhealthySet[j.Type] = true
		if err := m.store.UpdateStatus(ctx, j.ID, job.StatusRetry, nil, "reaper: stuck in processing"); err != nil {
			m.log.Error("queuemanager: reaper requeue failed", zap.String("jobId", j.ID), zap.Error(err))
			continue
		}
		m.br.Submit(j.Type, j.ID, j.Priority, 0)
		obs.ReaperRecovered.Inc()
	}

	stats, err := m.Stats(ctx)
	if err != nil {
		m.log.Error("queuemanager: health check stats failed", zap.Error(err))
		return
	}

	healthy := m.br.Ping() == nil && len(unhealthySet) == 0
	var unhealthyTypes []job.Type
	for typ := range unhealthySet {
		unhealthyTypes = append(unhealthyTypes, typ)
	}

	m.bus.Publish(eventbus.Event{
		Kind:      eventbus.KindHealthCheck,
		Data:      HealthEvent{Healthy: healthy, UnhealthyTypes: unhealthyTypes, Stats: stats},
		Timestamp: time.Now(),
	})
}

// broadcastProgress republishes the last-known progress for every active
// job so late-joining subscribers get a recent snapshot (spec.md §4.7).
func (m *Manager) broadcastProgress(ctx context.Context) {
	processing, err := m.store.ListByStatus(ctx, job.StatusProcessing, 1000)
	if err != nil {
		m.log.Error("queuemanager: progress broadcast list failed", zap.Error(err))
		return
	}
	for _, j := range processing {
		p, ok := m.facade.GetJobProgress(j.ID)
		if !ok {
			continue
		}
		m.bus.Publish(eventbus.Event{
			Kind:       eventbus.KindJobProgress,
			JobID:      j.ID,
			TargetUser: j.UserID,
			Data:       p,
			Timestamp:  time.Now(),
		})
	}
}

// RetryFailedJobs re-enqueues failed jobs completed within window whose
// retry_count < 3, optionally scoped to one type, up to cap jobs.
func (m *Manager) RetryFailedJobs(ctx context.Context, window time.Duration, typ *job.Type, cap int) (RetryResult, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}
	failed, err := m.store.ListByStatus(ctx, job.StatusFailed, 10000)
	if err != nil {
		return RetryResult{}, err
	}
	cutoff := time.Now().Add(-window)
	result := RetryResult{}
	for _, j := range failed {
		if cap > 0 && result.Retried >= cap {
			break
		}
		if typ != nil && j.Type != *typ {
			continue
		}
		if j.CompletedAt == nil || j.CompletedAt.Before(cutoff) {
			result.Skipped++
			continue
		}
		if j.RetryCount >= 3 {
			result.Skipped++
			continue
		}
		if err := m.store.UpdateStatus(ctx, j.ID, job.StatusRetry, nil, ""); err != nil {
			result.Skipped++
			continue
		}
		m.br.Submit(j.Type, j.ID, j.Priority, 0)
		result.Retried++
	}
	return result, nil
}

// shutdown stops taking new work, waits (up to the grace deadline) for zero
// active jobs, then sweeps old completed/failed jobs (spec.md §4.7).
func (m *Manager) shutdown() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()

	cronCtx := m.cron.Stop()
	<-cronCtx.Done()

	deadline := time.Now().Add(shutdownDeadline)
	for time.Now().Before(deadline) {
		if m.allQueuesIdle() {
			break
		}
		time.Sleep(250 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := m.store.DeleteCompletedBefore(ctx, time.Now().Add(-sweepOlderThan)); err != nil {
		m.log.Error("queuemanager: shutdown sweep failed", zap.Error(err))
	}
}

func (m *Manager) allQueuesIdle() bool {
	for _, typ := range m.br.RegisteredTypes() {
		if m.br.ActiveCount(typ) > 0 {
			return false
		}
	}
	return true
}
