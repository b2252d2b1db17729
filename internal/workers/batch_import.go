// Copyright 2025 James Ross
package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/asyncforge/contentcore/internal/itemstore"
	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/workerrt"
)

// BatchImportWorker implements SPEC_FULL.md §4.5.e: validates and
// registers externally-supplied item stubs as new items. Out-of-scope
// importers (file/URL) feed this job's payload; the worker never reaches
// into them.
type BatchImportWorker struct {
	Items itemstore.Store
}

type batchImportResult struct {
	Imported int      `json:"imported"`
	Skipped  []string `json:"skipped,omitempty"`
}

func (w *BatchImportWorker) Process(ctx context.Context, j job.Job, report workerrt.ReportProgress) (json.RawMessage, error) {
	var payload job.BatchImportPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return nil, err
	}

	result := batchImportResult{}
	total := len(payload.Items)
	for i, stub := range payload.Items {
		if stub.ID == "" || stub.Content == "" {
			result.Skipped = append(result.Skipped, fmt.Sprintf("index %d: missing id or content", i))
			continue
		}
		if w.Items != nil {
			if err := w.Items.Upsert(ctx, itemstore.Item{ID: stub.ID, Content: stub.Content}); err != nil {
				return nil, err
			}
		}
		result.Imported++
		if total > 0 {
			report(int(float64(i+1)/float64(total)*100), "importing", nil)
		}
	}

	return json.Marshal(result)
}
