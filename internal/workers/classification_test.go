// Copyright 2025 James Ross
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/asyncforge/contentcore/internal/itemstore"
	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopReport(int, string, interface{}) {}

// Scenario 1 (spec.md §8): a classification job over "You are a helpful
// assistant. Answer the user's question." must complete with a type of
// "prompt" or "agent" once the LLM classifier succeeds.
func TestClassificationWorkerScenario1HelpfulAssistant(t *testing.T) {
	ctx := context.Background()
	fake := provider.NewFake()
	fake.ForceComplete = `{"type":"prompt","subType":"instruction","confidence":0.82}`

	w := &ClassificationWorker{Capability: fake}
	payload := job.ClassificationPayload{Content: "You are a helpful assistant. Answer the user's question.", Format: ".md"}
	j, err := job.New("job-1", job.TypeClassification, job.PriorityNormal, "u1", payload)
	require.NoError(t, err)

	raw, err := w.Process(ctx, j, noopReport)
	require.NoError(t, err)

	var result job.ClassificationResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Contains(t, []string{"prompt", "agent"}, result.Type)
	assert.Nil(t, result.Metadata)
}

// Scenario 5 (spec.md §8): forcing the LLM provider to fail must run the
// rule-based fallback, land confidence in [0.3, 0.8], flag
// metadata.fallback=true, and still complete the job without error.
func TestClassificationWorkerScenario5FallsBackOnProviderFailure(t *testing.T) {
	ctx := context.Background()
	fake := provider.NewFake()
	fake.FailComplete = errors.New("upstream unavailable")

	w := &ClassificationWorker{Capability: fake}
	payload := job.ClassificationPayload{Content: "You are a helpful assistant. Answer the user's question.", Format: ".md"}
	j, err := job.New("job-2", job.TypeClassification, job.PriorityNormal, "u1", payload)
	require.NoError(t, err)

	raw, err := w.Process(ctx, j, noopReport)
	require.NoError(t, err)

	var result job.ClassificationResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.GreaterOrEqual(t, result.Confidence, 0.3)
	assert.LessOrEqual(t, result.Confidence, 0.8)
	assert.Equal(t, "true", result.Metadata["fallback"])
}

func TestClassificationWorkerRuleBasedAgentDetection(t *testing.T) {
	content := "Explain the weather.\nYou are a helpful assistant. Act as a guide for the user."
	features := extractFeatures(content)
	assert.Equal(t, "agent", ruleBasedClassify(content, features))
}

func TestClassificationWorkerPersistsOutcomeOnItem(t *testing.T) {
	ctx := context.Background()
	items := itemstore.NewMemory()
	fake := provider.NewFake()
	fake.ForceComplete = `{"type":"template","confidence":0.7}`

	w := &ClassificationWorker{Capability: fake, Items: items}
	payload := job.ClassificationPayload{Content: "Use {{variable}} in this template.", Format: ".md", ItemID: "item-1"}
	j, err := job.New("job-3", job.TypeClassification, job.PriorityNormal, "u1", payload)
	require.NoError(t, err)

	_, err = w.Process(ctx, j, noopReport)
	require.NoError(t, err)

	stored, found, err := items.Get(ctx, "item-1")
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, stored.Classification)
	assert.Equal(t, "template", stored.Classification.Type)
}
