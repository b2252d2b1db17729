// Copyright 2025 James Ross
package workers

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/asyncforge/contentcore/internal/itemstore"
	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/provider"
	"github.com/asyncforge/contentcore/internal/similarity"
	"github.com/asyncforge/contentcore/internal/workerrt"
)

// DeduplicationWorker implements spec.md §4.5.c's three-signal dedup pass
// (exact, structural, semantic) plus greedy grouping.
type DeduplicationWorker struct {
	Capability provider.Capability
	Items      itemstore.Store
}

const defaultDedupThreshold = 0.8

func (w *DeduplicationWorker) Process(ctx context.Context, j job.Job, report workerrt.ReportProgress) (json.RawMessage, error) {
	var payload job.DeduplicationPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return nil, err
	}
	threshold := payload.Threshold
	if threshold <= 0 {
		threshold = defaultDedupThreshold
	}

	contents := make(map[string]string, len(payload.Items))
	names := make(map[string]string, len(payload.Items))
	ids := make([]string, 0, len(payload.Items))
	for _, item := range payload.Items {
		contents[item.ID] = item.Content
		names[item.ID] = item.Name
		ids = append(ids, item.ID)
	}

	report(10, "exact signal", nil)
	var records []job.SimilarityRecord
	for _, bucket := range similarity.ExactBuckets(ids, contents) {
		if len(bucket) < 2 {
			continue
		}
		for i := 0; i < len(bucket); i++ {
			for k := i + 1; k < len(bucket); k++ {
				records = append(records, job.SimilarityRecord{ID1: bucket[i], ID2: bucket[k], Score: 1.0, Kind: similarity.KindExact, Confidence: 1.0})
			}
		}
	}

	report(35, "structural signal", nil)
	fingerprints := make(map[string]similarity.Fingerprint, len(ids))
	for _, id := range ids {
		fingerprints[id] = similarity.StructuralFingerprint(contents[id])
	}
	for i := 0; i < len(ids); i++ {
		for k := i + 1; k < len(ids); k++ {
			score := similarity.StructuralScore(fingerprints[ids[i]], fingerprints[ids[k]])
			if score > similarity.StructuralThreshold {
				records = append(records, job.SimilarityRecord{ID1: ids[i], ID2: ids[k], Score: score, Kind: similarity.KindStructural, Confidence: 0.8})
			}
		}
	}

	report(60, "semantic signal", nil)
	for i := 0; i < len(ids); i++ {
		for k := i + 1; k < len(ids); k++ {
			score, _, err := similarity.SemanticScore(ctx, w.Capability, contents[ids[i]], contents[ids[k]])
			if err != nil {
				continue
			}
			if score > threshold {
				records = append(records, job.SimilarityRecord{ID1: ids[i], ID2: ids[k], Score: score, Kind: similarity.KindSemantic, Confidence: 0.7})
			}
		}
	}

	report(85, "grouping", nil)
	groups := groupDuplicates(records, contents, names)

	report(95, "persisting", nil)
	if w.Items != nil {
		for _, g := range groups {
			canonical, _, _ := w.Items.Get(ctx, g.CanonicalID)
			canonical.ID = g.CanonicalID
			canonical.Canonical = true
			_ = w.Items.Upsert(ctx, canonical)
			for _, dup := range g.DuplicateIDs {
				d, _, _ := w.Items.Get(ctx, dup)
				d.ID = dup
				d.Canonical = false
				d.CanonicalID = g.CanonicalID
				_ = w.Items.Upsert(ctx, d)
			}
		}
	}

	result := job.DeduplicationResult{Groups: groups, Similarities: records}
	return json.Marshal(result)
}

// groupDuplicates implements spec.md §4.5.c step 4: sort pairs by score
// descending, then greedily union endpoints into groups, choosing a
// canonical by "length ratio ≥1.2 wins; else longer name wins; else the
// first".
func groupDuplicates(records []job.SimilarityRecord, contents, names map[string]string) []job.DuplicateGroup {
	sorted := append([]job.SimilarityRecord(nil), records...)
	sort.SliceStable(sorted, func(i, k int) bool { return sorted[i].Score > sorted[k].Score })

	idToGroup := make(map[string]int)
	var groups []*job.DuplicateGroup

	canonicalOf := func(a, b string) (canonical, other string) {
		la, lb := float64(len(contents[a])), float64(len(contents[b]))
		if lb > 0 && la/lb >= 1.2 {
			return a, b
		}
		if la > 0 && lb/la >= 1.2 {
			return b, a
		}
		if len(names[a]) != len(names[b]) {
			if len(names[a]) > len(names[b]) {
				return a, b
			}
			return b, a
		}
		return a, b
	}

	for _, rec := range sorted {
		gi, aGrouped := idToGroup[rec.ID1]
		gk, bGrouped := idToGroup[rec.ID2]
		switch {
		case !aGrouped && !bGrouped:
			canonical, other := canonicalOf(rec.ID1, rec.ID2)
			g := &job.DuplicateGroup{CanonicalID: canonical, DuplicateIDs: []string{other}, Similarity: rec.Score}
			groups = append(groups, g)
			idx := len(groups) - 1
			idToGroup[canonical] = idx
			idToGroup[other] = idx
		case aGrouped && !bGrouped:
			groups[gi].DuplicateIDs = append(groups[gi].DuplicateIDs, rec.ID2)
			idToGroup[rec.ID2] = gi
		case !aGrouped && bGrouped:
			groups[gk].DuplicateIDs = append(groups[gk].DuplicateIDs, rec.ID1)
			idToGroup[rec.ID1] = gk
		default:
			// both already grouped: skip per spec.md §4.5.c step 4.
		}
	}

	out := make([]job.DuplicateGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	return out
}
