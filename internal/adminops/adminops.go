// Copyright 2025 James Ross

// Package adminops implements the operator CLI's inspection and
// maintenance commands (stats, peek, purge, bench). Grounded on the
// teacher's internal/admin package, reworked from direct Redis list
// scans onto the Job Store / Broker / Queue Manager abstractions this
// module's architecture actually uses.
package adminops

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/jobstore"
	"github.com/asyncforge/contentcore/internal/queuefacade"
	"github.com/asyncforge/contentcore/internal/queuemanager"
	"github.com/google/uuid"
)

// Stats reports the system-wide snapshot the Queue Manager already
// aggregates (spec.md §4.7), exposed here as the admin CLI's "stats" view.
func Stats(ctx context.Context, mgr *queuemanager.Manager) (queuemanager.Statistics, error) {
	return mgr.Stats(ctx)
}

// PeekResult lists jobs of a given status, most recently created first.
type PeekResult struct {
	Status job.Status `json:"status"`
	Jobs   []job.Job  `json:"jobs"`
}

// Peek returns up to n of the most recent jobs in the given status,
// analogous to the teacher's "peek a queue's next N items".
func Peek(ctx context.Context, store jobstore.Store, status job.Status, n int64) (PeekResult, error) {
	if n <= 0 {
		n = 10
	}
	jobs, err := store.ListByStatus(ctx, status, int(n))
	if err != nil {
		return PeekResult{}, err
	}
	return PeekResult{Status: status, Jobs: jobs}, nil
}

// PurgeDead deletes every terminal job (completed, failed, or dead-lettered)
// whose completion time is before a cutoff one second after now (so jobs
// that finished just now are included), the equivalent of the teacher's PurgeDLQ/PurgeAll against
// Redis's completed/dead_letter lists.
func PurgeDead(ctx context.Context, store jobstore.Store) (int64, error) {
	return store.DeleteCompletedBefore(ctx, time.Now().UTC().Add(time.Second))
}

// BenchResult reports synthetic-load throughput and completion latency
// percentiles, mirroring the teacher's Bench helper.
type BenchResult struct {
	Count      int           `json:"count"`
	Duration   time.Duration `json:"duration"`
	Throughput float64       `json:"throughputJobsPerSec"`
	P50        time.Duration `json:"p50Latency"`
	P95        time.Duration `json:"p95Latency"`
}

// Bench submits count synthetic classification jobs through the Façade at
// the given rate (jobs/sec) and polls the Job Store until all reach a
// terminal status or timeout elapses, then reports throughput and
// completion-latency percentiles measured from each job's CreatedAt.
func Bench(ctx context.Context, facade *queuefacade.Facade, store jobstore.Store, priority job.Priority, count, rate int, timeout time.Duration) (BenchResult, error) {
	res := BenchResult{Count: count}
	if count <= 0 {
		return res, fmt.Errorf("count must be > 0")
	}
	if rate <= 0 {
		rate = 100
	}

	ids := make([]string, 0, count)
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()
	start := time.Now()
	for i := 0; i < count; i++ {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-ticker.C:
		}
		id, err := facade.AddJob(ctx, job.TypeClassification, priority, "bench", job.ClassificationPayload{
			Content: fmt.Sprintf("bench payload %d %s", i, uuid.NewString()),
			Format:  "text",
		})
		if err != nil {
			return res, err
		}
		ids = append(ids, id)
	}

	doneBy := time.Now().Add(timeout)
	for time.Now().Before(doneBy) {
		if allTerminal(ctx, store, ids) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	res.Duration = time.Since(start)
	if res.Duration > 0 {
		res.Throughput = float64(count) / res.Duration.Seconds()
	}

	lats := make([]float64, 0, len(ids))
	for _, id := range ids {
		j, found, err := store.Get(ctx, id)
		if err != nil || !found || j.CompletedAt == nil {
			continue
		}
		lats = append(lats, j.CompletedAt.Sub(j.CreatedAt).Seconds())
	}
	if len(lats) > 0 {
		sort.Float64s(lats)
		res.P50 = time.Duration(lats[int(math.Round(0.50*float64(len(lats)-1)))] * float64(time.Second))
		res.P95 = time.Duration(lats[int(math.Round(0.95*float64(len(lats)-1)))] * float64(time.Second))
	}
	return res, nil
}

func allTerminal(ctx context.Context, store jobstore.Store, ids []string) bool {
	for _, id := range ids {
		j, found, err := store.Get(ctx, id)
		if err != nil || !found || !j.Status.Terminal() {
			return false
		}
	}
	return true
}
