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

// IntelligencePipelineWorker implements SPEC_FULL.md §4.5.e: a small
// interpreter dispatching to the same sub-routines the dedicated workers
// use, run in-process inside one job body, one step per entry in
// Operations. A mid-sequence failure retains prior step output.
type IntelligencePipelineWorker struct {
	Capability provider.Capability
	Items      itemstore.Store
}

type intelligencePipelineResult struct {
	Completed []string                   `json:"completed"`
	Partial   map[string]json.RawMessage `json:"partial"`
}

func (w *IntelligencePipelineWorker) Process(ctx context.Context, j job.Job, report workerrt.ReportProgress) (json.RawMessage, error) {
	var payload job.IntelligencePipelinePayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return nil, err
	}

	result := intelligencePipelineResult{Partial: make(map[string]json.RawMessage)}
	total := len(payload.Operations)

	for i, op := range payload.Operations {
		stepResult, err := w.runStep(ctx, op, payload.ItemIDs)
		if err != nil {
			partial, _ := json.Marshal(result)
			return partial, fmt.Errorf("step %q (item batch): %w", op, err)
		}
		result.Partial[op] = stepResult
		result.Completed = append(result.Completed, op)
		if total > 0 {
			report(int(float64(i+1)/float64(total)*100), "running "+op, nil)
		}
	}

	return json.Marshal(result)
}

func (w *IntelligencePipelineWorker) runStep(ctx context.Context, op string, itemIDs []string) (json.RawMessage, error) {
	var outputs []json.RawMessage
	for _, id := range itemIDs {
		item, found, err := w.Items.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		out, err := w.runSubroutine(ctx, op, item)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, out)
	}
	return json.Marshal(outputs)
}

func (w *IntelligencePipelineWorker) runSubroutine(ctx context.Context, op string, item itemstore.Item) (json.RawMessage, error) {
	switch op {
	case string(job.TypeClassification):
		cw := &ClassificationWorker{Capability: w.Capability, Items: w.Items}
		return cw.Process(ctx, job.Job{Payload: mustMarshal(job.ClassificationPayload{Content: item.Content, Format: "text", ItemID: item.ID})}, noopReport)
	case string(job.TypeQualityAssessment):
		qw := &QualityAssessmentWorker{}
		return qw.Process(ctx, job.Job{Payload: mustMarshal(job.QualityAssessmentPayload{Content: item.Content, Type: "prompt", Format: "text"})}, noopReport)
	case string(job.TypeFolderSuggestion):
		fw := &FolderSuggestionWorker{Items: w.Items}
		return fw.Process(ctx, job.Job{Payload: mustMarshal(job.FolderSuggestionPayload{Content: item.Content, ItemID: item.ID})}, noopReport)
	default:
		return nil, fmt.Errorf("intelligence_pipeline: unsupported operation %q", op)
	}
}
