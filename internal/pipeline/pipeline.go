// Copyright 2025 James Ross
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/asyncforge/contentcore/internal/eventbus"
	"github.com/asyncforge/contentcore/internal/itemstore"
	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/queuefacade"
	"github.com/asyncforge/contentcore/internal/realtime"
	"github.com/google/uuid"
)

const skipIfOptimizedWindow = 7 * 24 * time.Hour

// defaultTargetModels derives the target-model bundle from an item's
// classification type when the caller supplies none (spec.md §4.9).
func defaultTargetModels(itemType string) []string {
	switch itemType {
	case "agent":
		return []string{"anthropic", "openai"}
	case "prompt":
		return []string{"openai", "anthropic", "gemini"}
	case "template":
		return []string{"openai", "gemini"}
	default:
		return []string{"openai"}
	}
}

// ProcessItemOptions are the per-call options process_item accepts.
type ProcessItemOptions struct {
	TargetModels    []string
	SkipIfOptimized bool
	ForceReprocess  bool
}

// ExecutionEntry is one audit-trail row recorded per process_item call
// (spec.md §4.9 "pipeline-execution audit entry listing every job id").
type ExecutionEntry struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"itemId"`
	UserID    string    `json:"userId"`
	JobIDs    []string  `json:"jobIds"`
	Config    Config    `json:"config"`
	CreatedAt time.Time `json:"createdAt"`
}

// Pipeline implements spec.md §4.9's public operations over the Façade.
// Grounded on the teacher's DLQ remediation pipeline's chunked-batch shape,
// generalized from dead-letter replays to the content-processing bundle.
type Pipeline struct {
	Facade *queuefacade.Facade
	Items  itemstore.Store
	Audit  realtime.AuditLog

	config *configStore

	executionsMu sync.Mutex
	executions   []ExecutionEntry
}

func New(facade *queuefacade.Facade, items itemstore.Store, audit realtime.AuditLog) *Pipeline {
	return &Pipeline{Facade: facade, Items: items, Audit: audit, config: newConfigStore()}
}

// GetConfig returns the current process-wide configuration.
func (p *Pipeline) GetConfig() Config { return p.config.get() }

// UpdateConfig applies a partial update; in-flight bundles keep the
// configuration snapshot captured in their own audit entry.
func (p *Pipeline) UpdateConfig(partial ConfigPartial) Config { return p.config.update(partial) }

// ProcessItem enqueues the ordered bundle for one item (spec.md §4.9).
func (p *Pipeline) ProcessItem(ctx context.Context, userID, itemID string, opts ProcessItemOptions) ([]string, error) {
	cfg := p.config.get()

	item, found, err := p.Items.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("pipeline: item %q not found", itemID)
	}

	p.notify(userID, "pipeline:start", map[string]interface{}{"itemId": itemID})

	if opts.SkipIfOptimized && item.OptimizedAt != nil && time.Since(*item.OptimizedAt) < skipIfOptimizedWindow {
		return nil, nil
	}

	itemType := ""
	if item.Classification != nil {
		itemType = item.Classification.Type
	}

	// AddJob's errors are all Fatal (job.New/Store.Create failures per
	// queuefacade.go): abort the bundle on the first one rather than
	// enqueueing a partial set (spec.md §7). The audit entry is only
	// recorded once every job id in the bundle is known.
	var jobIDs []string
	enqueue := func(typ job.Type, payload interface{}) error {
		id, err := p.Facade.AddJob(ctx, typ, cfg.Priority, userID, payload)
		if err != nil {
			return fmt.Errorf("pipeline: enqueue %s: %w", typ, err)
		}
		jobIDs = append(jobIDs, id)
		return nil
	}

	needsClassification := itemType == "" || itemType == "other" || opts.ForceReprocess
	if cfg.EnableAutoClassification && needsClassification {
		if err := enqueue(job.TypeClassification, job.ClassificationPayload{Content: item.Content, Format: "text", ItemID: itemID}); err != nil {
			p.notify(userID, "pipeline:enqueue_failed", map[string]interface{}{"itemId": itemID, "type": string(job.TypeClassification), "error": err.Error()})
			return nil, err
		}
	}

	if cfg.EnableQualityAssessment {
		if err := enqueue(job.TypeQualityAssessment, job.QualityAssessmentPayload{Content: item.Content, Type: itemType, Format: "text"}); err != nil {
			p.notify(userID, "pipeline:enqueue_failed", map[string]interface{}{"itemId": itemID, "type": string(job.TypeQualityAssessment), "error": err.Error()})
			return nil, err
		}
	}

	if cfg.EnableAutoOptimization {
		targets := opts.TargetModels
		if len(targets) == 0 {
			targets = defaultTargetModels(itemType)
		}
		for _, model := range targets {
			if err := enqueue(job.TypeOptimization, job.OptimizationPayload{Content: item.Content, TargetModel: model, CurrentFormat: "text", ItemID: itemID}); err != nil {
				p.notify(userID, "pipeline:enqueue_failed", map[string]interface{}{"itemId": itemID, "type": string(job.TypeOptimization), "error": err.Error()})
				return nil, err
			}
		}
	}

	p.recordExecution(itemID, userID, jobIDs, cfg)
	return jobIDs, nil
}

// ProcessBatch chunks ids into groups of cfg.BatchSize, processes each
// chunk in parallel, and sleeps 1 second between chunks (spec.md §4.9).
// Per-item errors are swallowed to keep the batch going.
func (p *Pipeline) ProcessBatch(ctx context.Context, userID string, ids []string, opts ProcessItemOptions) {
	cfg := p.config.get()
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		var wg sync.WaitGroup
		for _, id := range chunk {
			wg.Add(1)
			go func(itemID string) {
				defer wg.Done()
				if _, err := p.ProcessItem(ctx, userID, itemID, opts); err != nil {
					p.notify(userID, "pipeline:batch_item_failed", map[string]interface{}{"itemId": itemID, "error": err.Error()})
				}
			}(id)
		}
		wg.Wait()

		if end < len(ids) {
			time.Sleep(time.Second)
		}
	}
}

// RunDeduplication enqueues one deduplication job over up to 1000 of the
// user's items (spec.md §4.9).
func (p *Pipeline) RunDeduplication(ctx context.Context, userID string, itemIDs []string) (string, error) {
	if len(itemIDs) > 1000 {
		itemIDs = itemIDs[:1000]
	}
	if len(itemIDs) < 2 {
		return "", nil
	}
	items := make([]job.DedupItem, 0, len(itemIDs))
	for _, id := range itemIDs {
		it, found, err := p.Items.Get(ctx, id)
		if err != nil {
			return "", err
		}
		if !found {
			continue
		}
		items = append(items, job.DedupItem{ID: id, Content: it.Content, Name: id})
	}
	if len(items) < 2 {
		return "", nil
	}
	return p.Facade.AddJob(ctx, job.TypeDeduplication, p.config.get().Priority, userID, job.DeduplicationPayload{Items: items, Threshold: 0.8})
}

// RunSimilarityScoring enqueues one similarity_scoring job per target id
// paired against sourceID (spec.md §4.9).
func (p *Pipeline) RunSimilarityScoring(ctx context.Context, userID, sourceID string, targetIDs []string) ([]string, error) {
	source, found, err := p.Items.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("pipeline: source item %q not found", sourceID)
	}

	var jobIDs []string
	for _, targetID := range targetIDs {
		target, found, err := p.Items.Get(ctx, targetID)
		if err != nil || !found {
			continue
		}
		id, err := p.Facade.AddJob(ctx, job.TypeSimilarityScoring, p.config.get().Priority, userID, job.SimilarityScoringPayload{
			SourceContent: source.Content,
			TargetContent: target.Content,
			Algorithm:     "semantic",
		})
		if err != nil {
			continue
		}
		jobIDs = append(jobIDs, id)
	}
	return jobIDs, nil
}

// PipelineStatus is the response shape get_pipeline_status returns
// (spec.md §4.9).
type PipelineStatus struct {
	CountsByStatus map[job.Status]int `json:"countsByStatus"`
	CountsByType   map[job.Type]int   `json:"countsByType"`
	RecentJobs     []job.Job          `json:"recentJobs"`
}

func (p *Pipeline) GetPipelineStatus(ctx context.Context, userID string) (PipelineStatus, error) {
	jobs, err := p.Facade.Store.ListByUser(ctx, userID, 20)
	if err != nil {
		return PipelineStatus{}, err
	}
	status := PipelineStatus{CountsByStatus: make(map[job.Status]int), CountsByType: make(map[job.Type]int)}
	for _, j := range jobs {
		status.CountsByStatus[j.Status]++
		status.CountsByType[j.Type]++
	}
	if len(jobs) > 10 {
		jobs = jobs[:10]
	}
	status.RecentJobs = jobs
	return status, nil
}

func (p *Pipeline) recordExecution(itemID, userID string, jobIDs []string, cfg Config) {
	entry := ExecutionEntry{ID: uuid.NewString(), ItemID: itemID, UserID: userID, JobIDs: jobIDs, Config: cfg, CreatedAt: time.Now().UTC()}
	p.executionsMu.Lock()
	p.executions = append(p.executions, entry)
	p.executionsMu.Unlock()
	if p.Audit != nil {
		p.Audit.Record(userID, "pipeline:process_item", map[string]interface{}{"itemId": itemID, "jobIds": jobIDs})
	}
}

func (p *Pipeline) notify(userID, kind string, data map[string]interface{}) {
	if p.Facade == nil || p.Facade.Bus == nil {
		return
	}
	p.Facade.Bus.Publish(eventbus.Event{Kind: eventbus.KindNotification, TargetUser: userID, Data: map[string]interface{}{"kind": kind, "details": data}, Timestamp: time.Now().UTC()})
}
