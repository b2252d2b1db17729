// Copyright 2025 James Ross
package workers

import (
	"context"
	"encoding/json"

	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/provider"
	"github.com/asyncforge/contentcore/internal/similarity"
	"github.com/asyncforge/contentcore/internal/workerrt"
)

// SimilarityScoringWorker implements SPEC_FULL.md §4.5.e for exactly one
// pair: it scores the structural signal, the semantic signal, or both,
// as the payload's algorithm selects (syntactic, hybrid, or semantic by
// default).
type SimilarityScoringWorker struct {
	Capability provider.Capability
}

func (w *SimilarityScoringWorker) Process(ctx context.Context, j job.Job, report workerrt.ReportProgress) (json.RawMessage, error) {
	var payload job.SimilarityScoringPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return nil, err
	}
	report(20, "comparing", nil)

	var record job.SimilarityRecord
	switch payload.Algorithm {
	case "syntactic":
		score := similarity.StructuralScore(
			similarity.StructuralFingerprint(payload.SourceContent),
			similarity.StructuralFingerprint(payload.TargetContent),
		)
		record = job.SimilarityRecord{Score: score, Kind: similarity.KindStructural, Confidence: 0.8}
	case "hybrid":
		structScore := similarity.StructuralScore(
			similarity.StructuralFingerprint(payload.SourceContent),
			similarity.StructuralFingerprint(payload.TargetContent),
		)
		semScore, fallback, err := similarity.SemanticScore(ctx, w.Capability, payload.SourceContent, payload.TargetContent)
		if err != nil {
			return nil, err
		}
		combined := (structScore + semScore) / 2
		kind := similarity.KindSemantic
		if fallback {
			kind = similarity.KindStructural
		}
		record = job.SimilarityRecord{Score: combined, Kind: kind, Confidence: 0.75}
	default: // semantic
		score, fallback, err := similarity.SemanticScore(ctx, w.Capability, payload.SourceContent, payload.TargetContent)
		if err != nil {
			return nil, err
		}
		confidence := 0.7
		kind := similarity.KindSemantic
		if fallback {
			confidence = 0.5
		}
		record = job.SimilarityRecord{Score: score, Kind: kind, Confidence: confidence}
	}

	report(90, "done", nil)
	return json.Marshal(record)
}
