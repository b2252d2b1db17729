// Copyright 2025 James Ross
package workers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/asyncforge/contentcore/internal/itemstore"
	"github.com/asyncforge/contentcore/internal/job"
	"github.com/stretchr/testify/require"
)

func TestIntelligencePipelineRunsOperationsInOrder(t *testing.T) {
	items := itemstore.NewMemory()
	require.NoError(t, items.Upsert(context.Background(), itemstore.Item{
		ID:      "item-1",
		Content: "Always respond in a numbered list. If the user asks for code, provide an example.",
	}))

	w := &IntelligencePipelineWorker{Items: items}
	payload := job.IntelligencePipelinePayload{
		ItemIDs:    []string{"item-1"},
		Operations: []string{string(job.TypeClassification), string(job.TypeQualityAssessment)},
	}
	j := job.Job{Payload: mustMarshal(payload)}

	raw, err := w.Process(context.Background(), j, noopReport)
	require.NoError(t, err)

	var result intelligencePipelineResult
	require.NoError(t, json.Unmarshal(raw, &result))
	require.Equal(t, []string{string(job.TypeClassification), string(job.TypeQualityAssessment)}, result.Completed)
	require.Contains(t, result.Partial, string(job.TypeClassification))
	require.Contains(t, result.Partial, string(job.TypeQualityAssessment))
}

func TestIntelligencePipelineRetainsPartialOnUnsupportedStep(t *testing.T) {
	items := itemstore.NewMemory()
	require.NoError(t, items.Upsert(context.Background(), itemstore.Item{ID: "item-1", Content: "some content"}))

	w := &IntelligencePipelineWorker{Items: items}
	payload := job.IntelligencePipelinePayload{
		ItemIDs:    []string{"item-1"},
		Operations: []string{string(job.TypeClassification), "not_a_real_operation"},
	}
	j := job.Job{Payload: mustMarshal(payload)}

	raw, err := w.Process(context.Background(), j, noopReport)
	require.Error(t, err)
	require.NotNil(t, raw)

	var result intelligencePipelineResult
	require.NoError(t, json.Unmarshal(raw, &result))
	require.Equal(t, []string{string(job.TypeClassification)}, result.Completed)
	require.Contains(t, result.Partial, string(job.TypeClassification))
	require.NotContains(t, result.Partial, "not_a_real_operation")
}

func TestIntelligencePipelineSkipsMissingItems(t *testing.T) {
	items := itemstore.NewMemory()
	w := &IntelligencePipelineWorker{Items: items}
	payload := job.IntelligencePipelinePayload{
		ItemIDs:    []string{"missing-item"},
		Operations: []string{string(job.TypeClassification)},
	}
	j := job.Job{Payload: mustMarshal(payload)}

	raw, err := w.Process(context.Background(), j, noopReport)
	require.NoError(t, err)

	var result intelligencePipelineResult
	require.NoError(t, json.Unmarshal(raw, &result))
	var outputs []json.RawMessage
	require.NoError(t, json.Unmarshal(result.Partial[string(job.TypeClassification)], &outputs))
	require.Empty(t, outputs)
}
