// Copyright 2025 James Ross
package workers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/asyncforge/contentcore/internal/itemstore"
	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 2 (spec.md §8): three items, two with identical content "hello
// world" and one with "HELLO world!!", must collapse into a single
// duplicate group, with at least one exact-match pair recorded, and the
// canonical/duplicate assignment persisted back onto the items.
func TestDeduplicationWorkerScenario2CollapsesCosmeticDuplicates(t *testing.T) {
	ctx := context.Background()
	items := itemstore.NewMemory()
	for _, it := range []itemstore.Item{
		{ID: "id-1", Content: "hello world"},
		{ID: "id-2", Content: "hello world"},
		{ID: "id-3", Content: "HELLO world!!"},
	} {
		require.NoError(t, items.Upsert(ctx, it))
	}

	w := &DeduplicationWorker{Capability: provider.NewFake(), Items: items}
	payload := job.DeduplicationPayload{
		Items: []job.DedupItem{
			{ID: "id-1", Name: "id-1", Content: "hello world"},
			{ID: "id-2", Name: "id-2", Content: "hello world"},
			{ID: "id-3", Name: "id-3", Content: "HELLO world!!"},
		},
		Threshold: 0.8,
	}
	j, err := job.New("job-1", job.TypeDeduplication, job.PriorityNormal, "u1", payload)
	require.NoError(t, err)

	raw, err := w.Process(ctx, j, noopReport)
	require.NoError(t, err)

	var result job.DeduplicationResult
	require.NoError(t, json.Unmarshal(raw, &result))

	require.Len(t, result.Groups, 1)
	group := result.Groups[0]
	members := append([]string{group.CanonicalID}, group.DuplicateIDs...)
	assert.ElementsMatch(t, []string{"id-1", "id-2", "id-3"}, members)

	var exactCount int
	for _, rec := range result.Similarities {
		if rec.Kind == "exact" {
			exactCount++
			assert.Equal(t, 1.0, rec.Score)
			assert.Equal(t, 1.0, rec.Confidence)
		}
	}
	assert.Greater(t, exactCount, 0, "expected at least one exact-match pair")

	canonical, found, err := items.Get(ctx, group.CanonicalID)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, canonical.Canonical)

	for _, dupID := range group.DuplicateIDs {
		dup, found, err := items.Get(ctx, dupID)
		require.NoError(t, err)
		require.True(t, found)
		assert.False(t, dup.Canonical)
		assert.Equal(t, group.CanonicalID, dup.CanonicalID)
	}
}

func TestDeduplicationWorkerNoDuplicatesProducesNoGroups(t *testing.T) {
	ctx := context.Background()
	w := &DeduplicationWorker{Capability: provider.NewFake()}
	payload := job.DeduplicationPayload{
		Items: []job.DedupItem{
			{ID: "a", Name: "a", Content: "completely different content about astronomy"},
			{ID: "b", Name: "b", Content: "a recipe for sourdough bread with a long fermentation"},
		},
		Threshold: 0.8,
	}
	j, err := job.New("job-2", job.TypeDeduplication, job.PriorityNormal, "u1", payload)
	require.NoError(t, err)

	raw, err := w.Process(ctx, j, noopReport)
	require.NoError(t, err)

	var result job.DeduplicationResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Empty(t, result.Groups)
}

func TestGroupDuplicatesCanonicalByLengthRatio(t *testing.T) {
	contents := map[string]string{
		"short": "a short one",
		"long":  "a much, much longer piece of content than the other one here",
	}
	names := map[string]string{"short": "short", "long": "long"}
	records := []job.SimilarityRecord{{ID1: "short", ID2: "long", Score: 0.9, Kind: "structural", Confidence: 0.8}}

	groups := groupDuplicates(records, contents, names)
	require.Len(t, groups, 1)
	assert.Equal(t, "long", groups[0].CanonicalID)
	assert.Equal(t, []string{"short"}, groups[0].DuplicateIDs)
}
