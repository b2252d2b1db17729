// Copyright 2025 James Ross

// Package pipeline implements spec.md §4.9: the Optimization Pipeline,
// the fixed bundle of jobs a caller gets by naming an item instead of
// hand-assembling the custom sequence intelligence_pipeline allows.
package pipeline

import (
	"sync"

	"github.com/asyncforge/contentcore/internal/job"
)

// Config is the process-wide configuration record spec.md §4.9 names.
type Config struct {
	EnableAutoClassification bool         `json:"enableAutoClassification"`
	EnableAutoOptimization   bool         `json:"enableAutoOptimization"`
	EnableDuplicateDetection bool         `json:"enableDuplicateDetection"`
	EnableQualityAssessment  bool         `json:"enableQualityAssessment"`
	BatchSize                int          `json:"batchSize"`
	Priority                 job.Priority `json:"priority"`
}

// DefaultConfig matches the bundle spec.md §4.9 describes as the default
// behavior when a caller never calls update_config.
func DefaultConfig() Config {
	return Config{
		EnableAutoClassification: true,
		EnableAutoOptimization:   true,
		EnableDuplicateDetection: true,
		EnableQualityAssessment:  true,
		BatchSize:                10,
		Priority:                 job.PriorityNormal,
	}
}

// ConfigPartial carries only the fields update_config should overwrite;
// nil pointer fields are left untouched (spec.md §4.9 "partial").
type ConfigPartial struct {
	EnableAutoClassification *bool         `json:"enableAutoClassification,omitempty"`
	EnableAutoOptimization   *bool         `json:"enableAutoOptimization,omitempty"`
	EnableDuplicateDetection *bool         `json:"enableDuplicateDetection,omitempty"`
	EnableQualityAssessment  *bool         `json:"enableQualityAssessment,omitempty"`
	BatchSize                *int          `json:"batchSize,omitempty"`
	Priority                 *job.Priority `json:"priority,omitempty"`
}

// configStore guards the live configuration; updates take effect
// immediately for subsequent calls (spec.md §4.9).
type configStore struct {
	mu  sync.RWMutex
	cfg Config
}

func newConfigStore() *configStore {
	return &configStore{cfg: DefaultConfig()}
}

func (s *configStore) get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *configStore) update(p ConfigPartial) Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.EnableAutoClassification != nil {
		s.cfg.EnableAutoClassification = *p.EnableAutoClassification
	}
	if p.EnableAutoOptimization != nil {
		s.cfg.EnableAutoOptimization = *p.EnableAutoOptimization
	}
	if p.EnableDuplicateDetection != nil {
		s.cfg.EnableDuplicateDetection = *p.EnableDuplicateDetection
	}
	if p.EnableQualityAssessment != nil {
		s.cfg.EnableQualityAssessment = *p.EnableQualityAssessment
	}
	if p.BatchSize != nil {
		s.cfg.BatchSize = *p.BatchSize
	}
	if p.Priority != nil {
		s.cfg.Priority = *p.Priority
	}
	return s.cfg
}
