// Copyright 2025 James Ross
package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func twoBlobVectors() (ids []string, vectors map[string][]float64) {
	ids = []string{"a1", "a2", "a3", "b1", "b2", "b3"}
	vectors = map[string][]float64{
		"a1": {1, 0, 0},
		"a2": {0.9, 0.1, 0},
		"a3": {0.95, 0.05, 0},
		"b1": {0, 1, 0},
		"b2": {0.1, 0.9, 0},
		"b3": {0.05, 0.95, 0},
	}
	return ids, vectors
}

func membershipByID(ms []Membership) map[string]Membership {
	out := make(map[string]Membership, len(ms))
	for _, m := range ms {
		out[m.ItemID] = m
	}
	return out
}

func TestKMeansSeparatesDistinctBlobs(t *testing.T) {
	ids, vectors := twoBlobVectors()
	result := KMeans(ids, vectors, 2)
	byID := membershipByID(result)
	assert.Equal(t, byID["a1"].ClusterID, byID["a2"].ClusterID)
	assert.Equal(t, byID["a1"].ClusterID, byID["a3"].ClusterID)
	assert.Equal(t, byID["b1"].ClusterID, byID["b2"].ClusterID)
	assert.NotEqual(t, byID["a1"].ClusterID, byID["b1"].ClusterID)
}

func TestKMeansDefaultKIsBoundedByN(t *testing.T) {
	ids, vectors := twoBlobVectors()
	result := KMeans(ids, vectors, 0)
	seen := make(map[int]bool)
	for _, m := range result {
		seen[m.ClusterID] = true
	}
	assert.LessOrEqual(t, len(seen), len(ids))
}

func TestHierarchicalMergesWithinThreshold(t *testing.T) {
	ids, vectors := twoBlobVectors()
	result := Hierarchical(ids, vectors, 0.7)
	byID := membershipByID(result)
	assert.Equal(t, byID["a1"].ClusterID, byID["a2"].ClusterID)
	assert.NotEqual(t, byID["a1"].ClusterID, byID["b1"].ClusterID)
}

func TestDBSCANAssignsEveryItemIncludingNoise(t *testing.T) {
	ids, vectors := twoBlobVectors()
	vectors["outlier"] = []float64{0, 0, 1}
	ids = append(ids, "outlier")

	result := DBSCAN(ids, vectors, 0.7)
	assert.Len(t, result, len(ids))

	byID := membershipByID(result)
	assert.True(t, byID["outlier"].Noise)
	assert.Equal(t, byID["a1"].ClusterID, byID["a2"].ClusterID)
}

func TestCosineSimilarityIdenticalVectorsIsOne(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity(nil, []float64{1}))
}
