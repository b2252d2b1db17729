// Copyright 2025 James Ross
package job

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Type identifies a job family. Each type has its own payload schema and worker body.
type Type string

const (
	TypeClassification      Type = "classification"
	TypeOptimization         Type = "optimization"
	TypeConversion           Type = "conversion"
	TypeDeduplication        Type = "deduplication"
	TypeQualityAssessment    Type = "quality_assessment"
	TypeSimilarityScoring    Type = "similarity_scoring"
	TypeEmbeddingGeneration  Type = "embedding_generation"
	TypeContentAnalysis      Type = "content_analysis"
	TypeSemanticClustering   Type = "semantic_clustering"
	TypeModelOptimization    Type = "model_optimization"
	TypeContextAssembly      Type = "context_assembly"
	TypeFolderSuggestion     Type = "folder_suggestion"
	TypeBatchImport          Type = "batch_import"
	TypeIntelligencePipeline Type = "intelligence_pipeline"
)

// AllTypes lists every job type in the system, used to register one worker per type.
var AllTypes = []Type{
	TypeClassification, TypeOptimization, TypeConversion, TypeDeduplication,
	TypeQualityAssessment, TypeSimilarityScoring, TypeEmbeddingGeneration,
	TypeContentAnalysis, TypeSemanticClustering, TypeModelOptimization,
	TypeContextAssembly, TypeFolderSuggestion, TypeBatchImport, TypeIntelligencePipeline,
}

// Priority orders dispatch within a single job type. Strict ordering low < normal < high < critical.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "normal"
	}
}

func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	default:
		return PriorityNormal, fmt.Errorf("unknown priority %q", s)
	}
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Priority) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Status is one node in the job lifecycle DAG:
// pending -> processing -> (completed | failed | retry); retry -> processing; failed|retry -> dead.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRetry      Status = "retry"
	StatusDead       Status = "dead"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusDead
}

// Job is the central entity of the processing core.
type Job struct {
	ID           string            `json:"id"`
	Type         Type              `json:"type"`
	Priority     Priority          `json:"priority"`
	Status       Status            `json:"status"`
	Payload      json.RawMessage   `json:"payload"`
	UserID       string            `json:"userId"`
	TenantID     string            `json:"tenantId,omitempty"`
	RetryCount   int               `json:"retryCount"`
	MaxRetries   int               `json:"maxRetries"`
	CreatedAt    time.Time         `json:"createdAt"`
	ScheduledFor time.Time         `json:"scheduledFor"`
	StartedAt    *time.Time        `json:"startedAt,omitempty"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
	Result       json.RawMessage   `json:"result,omitempty"`
	Error        string            `json:"error,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	TraceID      string            `json:"traceId,omitempty"`
	SpanID       string            `json:"spanId,omitempty"`
}

const DefaultMaxRetries = 3

// New constructs a pending job with the given payload marshaled to JSON.
func New(id string, typ Type, priority Priority, userID string, payload interface{}) (Job, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("marshal payload: %w", err)
	}
	now := time.Now().UTC()
	return Job{
		ID:           id,
		Type:         typ,
		Priority:     priority,
		Status:       StatusPending,
		Payload:      b,
		UserID:       userID,
		MaxRetries:   DefaultMaxRetries,
		CreatedAt:    now,
		ScheduledFor: now,
	}, nil
}

func (j Job) Marshal() ([]byte, error) {
	return json.Marshal(j)
}

func Unmarshal(b []byte) (Job, error) {
	var j Job
	err := json.Unmarshal(b, &j)
	return j, err
}

// DeadEligible reports whether a failed/retry job has exhausted its retry budget.
func (j Job) DeadEligible() bool {
	return j.RetryCount >= j.MaxRetries
}
