// Copyright 2025 James Ross
package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/asyncforge/contentcore/internal/itemstore"
	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/provider"
	"github.com/asyncforge/contentcore/internal/workerrt"
)

// EmbeddingGenerationWorker implements SPEC_FULL.md §4.5.e: calls the
// embedding provider capability and persists the vector reference onto the
// item.
type EmbeddingGenerationWorker struct {
	Registry *provider.Registry
	Items    itemstore.Store
	Vectors  VectorStore
}

// VectorStore is the narrow abstraction the worker persists embeddings
// through; the concrete vector storage backend is out of scope (spec.md §1
// Non-goals treat the relational store abstractly).
type VectorStore interface {
	Put(ctx context.Context, ref string, vector []float64) error
}

type embeddingResult struct {
	VectorRef string `json:"vectorRef"`
	Dimension int    `json:"dimension"`
}

func (w *EmbeddingGenerationWorker) Process(ctx context.Context, j job.Job, report workerrt.ReportProgress) (json.RawMessage, error) {
	var payload job.EmbeddingGenerationPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return nil, err
	}
	report(20, "embedding", nil)
	cap := w.Registry.Resolve(payload.ProviderID)
	vector, err := cap.Embed(ctx, payload.Content)
	if err != nil {
		return nil, err
	}

	ref := fmt.Sprintf("emb:%s", j.ID)
	if w.Vectors != nil {
		if err := w.Vectors.Put(ctx, ref, vector); err != nil {
			return nil, err
		}
	}

	report(80, "persisting", nil)
	if payload.ItemID != "" && w.Items != nil {
		item, _, _ := w.Items.Get(ctx, payload.ItemID)
		item.ID = payload.ItemID
		item.EmbeddingRef = ref
		if err := w.Items.Upsert(ctx, item); err != nil {
			return nil, err
		}
	}

	return json.Marshal(embeddingResult{VectorRef: ref, Dimension: len(vector)})
}
