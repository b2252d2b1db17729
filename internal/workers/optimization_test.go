// Copyright 2025 James Ross
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/asyncforge/contentcore/internal/itemstore"
	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 4's bundle (spec.md §8) enqueues one optimization job per target
// model; this exercises the worker body that job ultimately runs.
func TestOptimizationWorkerAppliesLLMRewrite(t *testing.T) {
	ctx := context.Background()
	fake := provider.NewFake()
	fake.ForceComplete = `{"optimizedContent":"A concise rewrite.","suggestions":["tighten wording"]}`

	w := &OptimizationWorker{Capability: fake}
	payload := job.OptimizationPayload{Content: "This is a long and somewhat rambling sentence that could be tightened up quite a bit.", TargetModel: "openai", CurrentFormat: "text"}
	j, err := job.New("job-1", job.TypeOptimization, job.PriorityNormal, "u1", payload)
	require.NoError(t, err)

	raw, err := w.Process(ctx, j, noopReport)
	require.NoError(t, err)

	var result job.OptimizationResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "A concise rewrite.", result.OptimizedContent)
	assert.Equal(t, []string{"tighten wording"}, result.Suggestions)
	assert.Nil(t, result.Metadata)
}

// Scenario 5's "force the LLM to fail" applies equally to the optimization
// worker's rule-based transforms (spec.md §4.5.b / §7 "deterministic
// fallback"): unstructured multi-sentence prose becomes a numbered list,
// and openai-family targets get a system preamble prepended.
func TestOptimizationWorkerFallsBackToRuleBasedTransforms(t *testing.T) {
	ctx := context.Background()
	fake := provider.NewFake()
	fake.FailComplete = errors.New("upstream unavailable")

	w := &OptimizationWorker{Capability: fake}
	content := "First do this. Then do that. Also remember this. Finally wrap up."
	payload := job.OptimizationPayload{Content: content, TargetModel: "openai-gpt4", CurrentFormat: "text"}
	j, err := job.New("job-2", job.TypeOptimization, job.PriorityNormal, "u1", payload)
	require.NoError(t, err)

	raw, err := w.Process(ctx, j, noopReport)
	require.NoError(t, err)

	var result job.OptimizationResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.True(t, strings.HasPrefix(result.OptimizedContent, "You are a helpful, precise assistant."))
	assert.Contains(t, result.OptimizedContent, "1. ")
	assert.Equal(t, "true", result.Metadata["fallback"])
}

func TestOptimizationWorkerPersistsOptimizationOnItem(t *testing.T) {
	ctx := context.Background()
	items := itemstore.NewMemory()
	fake := provider.NewFake()
	fake.ForceComplete = `{"optimizedContent":"better","suggestions":[]}`

	w := &OptimizationWorker{Capability: fake, Items: items}
	payload := job.OptimizationPayload{Content: "original content", TargetModel: "claude", CurrentFormat: "text", ItemID: "item-1"}
	j, err := job.New("job-3", job.TypeOptimization, job.PriorityNormal, "u1", payload)
	require.NoError(t, err)

	_, err = w.Process(ctx, j, noopReport)
	require.NoError(t, err)

	stored, found, err := items.Get(ctx, "item-1")
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, stored.Optimization)
	assert.Equal(t, "better", stored.Optimization.OptimizedContent)
	require.NotNil(t, stored.OptimizedAt)
}

func TestAnalyzeContentRewardsStructureForOpenAI(t *testing.T) {
	structured := analyzeContent("# Heading\n- one\n- two", "openai")
	plain := analyzeContent("just some plain text with no markers at all", "openai")
	assert.True(t, structured.HasStructure)
	assert.Greater(t, structured.Compatibility, plain.Compatibility)
}
