// Copyright 2025 James Ross
package workers

import (
	"context"
	"encoding/json"

	"github.com/asyncforge/contentcore/internal/cluster"
	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/provider"
	"github.com/asyncforge/contentcore/internal/workerrt"
)

// ItemContent resolves an item id to its textual content, which the
// clustering worker embeds (or turns into a feature vector when embedding
// fails).
type ItemContent interface {
	Content(ctx context.Context, itemID string) (string, error)
}

// SemanticClusteringWorker implements SPEC_FULL.md §4.10: runs one of
// kmeans/hierarchical/dbscan over a set of items' embeddings (falling back
// to a structural+lexical feature vector when no embedding is available).
type SemanticClusteringWorker struct {
	Capability provider.Capability
	Items      ItemContent
}

func (w *SemanticClusteringWorker) Process(ctx context.Context, j job.Job, report workerrt.ReportProgress) (json.RawMessage, error) {
	var payload job.SemanticClusteringPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return nil, err
	}

	report(20, "collecting vectors", nil)
	vectors := make(map[string][]float64, len(payload.ItemIDs))
	for _, id := range payload.ItemIDs {
		content, err := w.Items.Content(ctx, id)
		if err != nil {
			continue
		}
		vec, embErr := w.Capability.Embed(ctx, content)
		if embErr != nil {
			vec = featureVector(content)
		}
		vectors[id] = vec
	}

	report(60, "clustering", nil)
	algo := cluster.Algorithm(payload.Algorithm)
	memberships := cluster.Run(algo, payload.ItemIDs, vectors, payload.NumClusters, payload.Threshold)

	clusterIDs := make(map[int]bool)
	out := make([]job.ClusterMembership, 0, len(memberships))
	for _, m := range memberships {
		clusterIDs[m.ClusterID] = true
		out = append(out, job.ClusterMembership{ItemID: m.ItemID, ClusterID: m.ClusterID, Noise: m.Noise})
	}

	result := job.SemanticClusteringResult{
		Algorithm:   string(algo),
		NumClusters: len(clusterIDs),
		Memberships: out,
	}
	return json.Marshal(result)
}

// featureVector is the structural+lexical fallback SPEC_FULL.md §4.10
// names for when no embedding is available: five of the classification
// content features (variables, imperative verbs, examples, conditionals,
// constraints) as 0/1 flags, plus the content length divided by 1000.
func featureVector(content string) []float64 {
	f := extractFeatures(content)
	vec := []float64{0, 0, 0, 0, 0, 0}
	if f.HasVariables {
		vec[0] = 1
	}
	if f.HasImperativeVerbs {
		vec[1] = 1
	}
	if f.HasExamples {
		vec[2] = 1
	}
	if f.HasConditionals {
		vec[3] = 1
	}
	if f.HasConstraints {
		vec[4] = 1
	}
	vec[5] = float64(f.Length) / 1000.0
	return vec
}
