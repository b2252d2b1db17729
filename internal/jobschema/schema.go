// Copyright 2025 James Ross
package jobschema

import (
	"fmt"
	"sync"

	"github.com/asyncforge/contentcore/internal/job"
	"github.com/xeipuuv/gojsonschema"
)

// ValidationError is returned when a payload fails its declared schema. It is
// always non-retryable: the worker runtime transitions the job directly to
// failed, skipping the broker's retry path.
type ValidationError struct {
	Type   job.Type
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("payload validation failed for %s: %v", e.Type, e.Errors)
}

var schemaJSON = map[job.Type]string{
	job.TypeClassification: `{
		"type": "object",
		"required": ["content", "format"],
		"properties": {
			"content": {"type": "string", "minLength": 1},
			"format": {"type": "string"},
			"targetModels": {"type": "array", "items": {"type": "string"}}
		}
	}`,
	job.TypeOptimization: `{
		"type": "object",
		"required": ["content", "targetModel", "currentFormat"],
		"properties": {
			"content": {"type": "string", "minLength": 1},
			"targetModel": {"type": "string"},
			"currentFormat": {"type": "string"}
		}
	}`,
	job.TypeConversion: `{
		"type": "object",
		"required": ["content", "fromFormat", "toFormat"],
		"properties": {
			"content": {"type": "string"},
			"fromFormat": {"type": "string"},
			"toFormat": {"type": "string"}
		}
	}`,
	job.TypeDeduplication: `{
		"type": "object",
		"required": ["items"],
		"properties": {
			"items": {
				"type": "array",
				"maxItems": 1000,
				"items": {
					"type": "object",
					"required": ["id", "content", "name"],
					"properties": {
						"id": {"type": "string"},
						"content": {"type": "string"},
						"name": {"type": "string"}
					}
				}
			},
			"threshold": {"type": "number", "minimum": 0, "maximum": 1}
		}
	}`,
	job.TypeQualityAssessment: `{
		"type": "object",
		"required": ["content", "type", "format"],
		"properties": {
			"content": {"type": "string", "minLength": 1},
			"type": {"type": "string"},
			"format": {"type": "string"}
		}
	}`,
	job.TypeSimilarityScoring: `{
		"type": "object",
		"required": ["sourceContent", "targetContent"],
		"properties": {
			"sourceContent": {"type": "string"},
			"targetContent": {"type": "string"},
			"algorithm": {"type": "string", "enum": ["semantic", "syntactic", "hybrid"]}
		}
	}`,
	job.TypeEmbeddingGeneration: `{
		"type": "object",
		"required": ["content"],
		"properties": {
			"content": {"type": "string", "minLength": 1},
			"providerId": {"type": "string"}
		}
	}`,
	job.TypeContentAnalysis: `{
		"type": "object",
		"required": ["content"],
		"properties": {
			"content": {"type": "string", "minLength": 1},
			"includeQuality": {"type": "boolean"},
			"includeSummary": {"type": "boolean"},
			"includeTags": {"type": "boolean"}
		}
	}`,
	job.TypeSemanticClustering: `{
		"type": "object",
		"properties": {
			"algorithm": {"type": "string", "enum": ["kmeans", "hierarchical", "dbscan"]},
			"numClusters": {"type": "integer", "minimum": 1},
			"threshold": {"type": "number", "minimum": 0, "maximum": 1},
			"itemIds": {"type": "array", "items": {"type": "string"}}
		}
	}`,
	job.TypeModelOptimization: `{
		"type": "object",
		"required": ["content", "targetModel"],
		"properties": {
			"content": {"type": "string", "minLength": 1},
			"targetModel": {"type": "string"},
			"maxTokenBudget": {"type": "integer", "minimum": 1},
			"prioritizeQuality": {"type": "boolean"},
			"aggressiveOptimization": {"type": "boolean"}
		}
	}`,
	job.TypeContextAssembly: `{
		"type": "object",
		"required": ["intent"],
		"properties": {
			"intent": {"type": "string", "minLength": 1},
			"query": {"type": "string"},
			"targetAudience": {"type": "string"},
			"domain": {"type": "string"},
			"strategy": {"type": "string"},
			"targetModel": {"type": "string"},
			"maxTokens": {"type": "integer", "minimum": 1}
		}
	}`,
	job.TypeFolderSuggestion: `{
		"type": "object",
		"required": ["content"],
		"properties": {
			"content": {"type": "string", "minLength": 1},
			"itemId": {"type": "string"}
		}
	}`,
	job.TypeBatchImport: `{
		"type": "object",
		"required": ["items"],
		"properties": {
			"items": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["id", "content"],
					"properties": {
						"id": {"type": "string"},
						"content": {"type": "string"}
					}
				}
			}
		}
	}`,
	job.TypeIntelligencePipeline: `{
		"type": "object",
		"required": ["itemIds", "operations"],
		"properties": {
			"itemIds": {"type": "array", "items": {"type": "string"}},
			"operations": {"type": "array", "items": {"type": "string"}}
		}
	}`,
}

var (
	once     sync.Once
	compiled map[job.Type]*gojsonschema.Schema
)

func compile() {
	compiled = make(map[job.Type]*gojsonschema.Schema, len(schemaJSON))
	for typ, raw := range schemaJSON {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			panic(fmt.Sprintf("jobschema: invalid built-in schema for %s: %v", typ, err))
		}
		compiled[typ] = s
	}
}

// Validate checks a job's raw JSON payload against the schema declared for
// its type. Every schema carries an implicit userId on the Job envelope, not
// the payload body, so userId is not required here.
func Validate(typ job.Type, payload []byte) error {
	once.Do(compile)
	schema, ok := compiled[typ]
	if !ok {
		return fmt.Errorf("jobschema: no schema registered for type %s", typ)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("jobschema: validate %s: %w", typ, err)
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return &ValidationError{Type: typ, Errors: errs}
	}
	return nil
}
