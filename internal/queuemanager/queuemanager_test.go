// Copyright 2025 James Ross
package queuemanager

import (
	"context"
	"testing"
	"time"

	"github.com/asyncforge/contentcore/internal/broker"
	"github.com/asyncforge/contentcore/internal/eventbus"
	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/jobstore"
	"github.com/asyncforge/contentcore/internal/progresscache"
	"github.com/asyncforge/contentcore/internal/queuefacade"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newManager(t *testing.T) (*Manager, *queuefacade.Facade) {
	t.Helper()
	store := jobstore.NewMemory()
	br := broker.New(time.Minute)
	bus := eventbus.New(zap.NewNop())
	progress := progresscache.New(time.Minute)
	facade := queuefacade.New(store, br, progress, bus)
	return New(facade, zap.NewNop()), facade
}

func TestDerivePriorityUsesFixedTiers(t *testing.T) {
	require.Equal(t, job.PriorityCritical, DerivePriority(job.TypeOptimization))
	require.Equal(t, job.PriorityHigh, DerivePriority(job.TypeQualityAssessment))
	require.Equal(t, job.PriorityNormal, DerivePriority(job.TypeDeduplication))
	require.Equal(t, job.PriorityLow, DerivePriority(job.TypeBatchImport))
}

func TestBulkCreateReturnsIdsInInputOrder(t *testing.T) {
	m, _ := newManager(t)
	items := []BulkCreateItem{
		{Type: job.TypeClassification, UserID: "u1", Payload: job.ClassificationPayload{Content: "a", Format: "text"}},
		{Type: job.TypeConversion, UserID: "u1", Payload: job.ConversionPayload{Content: "b", FromFormat: "md", ToFormat: "txt"}},
	}
	ids, err := m.BulkCreate(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.NotEqual(t, ids[0], ids[1])
}

func TestBulkCancelPartitionsOutcome(t *testing.T) {
	m, facade := newManager(t)
	id, err := facade.AddJob(context.Background(), job.TypeClassification, job.PriorityNormal, "u1", job.ClassificationPayload{Content: "a", Format: "text"})
	require.NoError(t, err)

	result := m.BulkCancel(context.Background(), []string{id, "missing-id"})
	require.Contains(t, result.Cancelled, id)
	require.Contains(t, result.Failed, "missing-id")
}

func TestStatsAggregatesAcrossQueues(t *testing.T) {
	m, facade := newManager(t)
	_, err := facade.AddJob(context.Background(), job.TypeClassification, job.PriorityNormal, "u1", job.ClassificationPayload{Content: "a", Format: "text"})
	require.NoError(t, err)

	stats, err := m.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Queues[job.TypeClassification].Waiting)
}

func TestRetryFailedJobsSkipsExhaustedRetries(t *testing.T) {
	m, facade := newManager(t)
	id, err := facade.AddJob(context.Background(), job.TypeClassification, job.PriorityNormal, "u1", job.ClassificationPayload{Content: "a", Format: "text"})
	require.NoError(t, err)
	require.NoError(t, facade.Store.UpdateStatus(context.Background(), id, job.StatusFailed, nil, "boom"))

	for i := 0; i < 3; i++ {
		_, err := facade.Store.IncrementRetry(context.Background(), id)
		require.NoError(t, err)
	}

	result, err := m.RetryFailedJobs(context.Background(), 24*time.Hour, nil, 0)
	require.NoError(t, err)
	require.Equal(t, 0, result.Retried)
	require.Equal(t, 1, result.Skipped)
}
