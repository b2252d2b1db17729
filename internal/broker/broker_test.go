// Copyright 2025 James Ross
package broker

import (
	"testing"
	"time"

	"github.com/asyncforge/contentcore/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchOrdersByPriorityThenFIFO(t *testing.T) {
	b := New(time.Minute)
	b.RegisterType(job.TypeClassification, 10)

	b.Submit(job.TypeClassification, "low-1", job.PriorityLow, 0)
	b.Submit(job.TypeClassification, "normal-1", job.PriorityNormal, 0)
	b.Submit(job.TypeClassification, "high-1", job.PriorityHigh, 0)
	b.Submit(job.TypeClassification, "critical-1", job.PriorityCritical, 0)
	b.Submit(job.TypeClassification, "critical-2", job.PriorityCritical, 0)

	order := []string{}
	for i := 0; i < 5; i++ {
		id, ok := b.Dispatch(job.TypeClassification)
		require.True(t, ok)
		order = append(order, id)
	}
	assert.Equal(t, []string{"critical-1", "critical-2", "high-1", "normal-1", "low-1"}, order)
}

func TestDispatchRespectsConcurrencyCap(t *testing.T) {
	b := New(time.Minute)
	b.RegisterType(job.TypeConversion, 2)

	b.Submit(job.TypeConversion, "a", job.PriorityNormal, 0)
	b.Submit(job.TypeConversion, "b", job.PriorityNormal, 0)
	b.Submit(job.TypeConversion, "c", job.PriorityNormal, 0)

	_, ok1 := b.Dispatch(job.TypeConversion)
	_, ok2 := b.Dispatch(job.TypeConversion)
	_, ok3 := b.Dispatch(job.TypeConversion)

	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.False(t, ok3, "third dispatch must block on the concurrency cap")
	assert.Equal(t, 2, b.ActiveCount(job.TypeConversion))
}

func TestDelayedJobNotEligibleEarly(t *testing.T) {
	b := New(time.Minute)
	b.RegisterType(job.TypeEmbeddingGeneration, 5)

	b.Submit(job.TypeEmbeddingGeneration, "delayed", job.PriorityNormal, time.Hour)
	_, ok := b.Dispatch(job.TypeEmbeddingGeneration)
	assert.False(t, ok, "delayed job must not dispatch before its eligible time")
}

func TestRequeueAppliesBackoffAndFreesSlot(t *testing.T) {
	b := New(time.Minute)
	b.RegisterType(job.TypeDeduplication, 1)

	b.Submit(job.TypeDeduplication, "job-1", job.PriorityNormal, 0)
	id, ok := b.Dispatch(job.TypeDeduplication)
	require.True(t, ok)
	require.Equal(t, "job-1", id)

	b.Requeue(job.TypeDeduplication, id, job.PriorityNormal, 1)
	assert.Equal(t, 0, b.ActiveCount(job.TypeDeduplication))

	_, ok = b.Dispatch(job.TypeDeduplication)
	assert.False(t, ok, "requeued job should still be in backoff delay")

	stats := b.Stats(job.TypeDeduplication)
	assert.EqualValues(t, 1, stats.Failed)
}

func TestAckIncrementsCompletedAndFreesSlot(t *testing.T) {
	b := New(time.Minute)
	b.RegisterType(job.TypeQualityAssessment, 1)

	b.Submit(job.TypeQualityAssessment, "job-1", job.PriorityNormal, 0)
	id, _ := b.Dispatch(job.TypeQualityAssessment)
	b.Ack(job.TypeQualityAssessment, id)

	assert.Equal(t, 0, b.ActiveCount(job.TypeQualityAssessment))
	assert.EqualValues(t, 1, b.Stats(job.TypeQualityAssessment).Completed)
}

func TestRemovePendingJob(t *testing.T) {
	b := New(time.Minute)
	b.RegisterType(job.TypeContentAnalysis, 5)

	b.Submit(job.TypeContentAnalysis, "pending-1", job.PriorityNormal, 0)
	b.Submit(job.TypeContentAnalysis, "delayed-1", job.PriorityNormal, time.Hour)

	assert.True(t, b.Remove(job.TypeContentAnalysis, "pending-1"))
	assert.True(t, b.Remove(job.TypeContentAnalysis, "delayed-1"))
	assert.False(t, b.Remove(job.TypeContentAnalysis, "missing"))

	_, ok := b.Dispatch(job.TypeContentAnalysis)
	assert.False(t, ok)
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	max := 10 * time.Second
	assert.Equal(t, 2*time.Second, backoffDelay(1, max))
	assert.Equal(t, 4*time.Second, backoffDelay(2, max))
	assert.Equal(t, 8*time.Second, backoffDelay(3, max))
	assert.Equal(t, max, backoffDelay(4, max))
}
