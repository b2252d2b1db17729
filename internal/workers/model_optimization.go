// Copyright 2025 James Ross
package workers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/provider"
	"github.com/asyncforge/contentcore/internal/workerrt"
)

// ModelOptimizationWorker implements SPEC_FULL.md §4.5.e: a variant of the
// Optimization Worker that additionally enforces a token budget and
// supports an aggressive transform set.
type ModelOptimizationWorker struct {
	Capability provider.Capability
}

// approxTokens is the same crude word-count proxy the context-assembly
// worker uses for its token budget, since no tokenizer is in scope.
func approxTokens(content string) int {
	return len(splitWords(content))
}

func truncateToBudget(content string, maxTokens int) string {
	words := splitWords(content)
	if maxTokens <= 0 || len(words) <= maxTokens {
		return content
	}
	return strings.Join(words[:maxTokens], " ")
}

func (w *ModelOptimizationWorker) Process(ctx context.Context, j job.Job, report workerrt.ReportProgress) (json.RawMessage, error) {
	var payload job.ModelOptimizationPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return nil, err
	}

	content := payload.Content
	if payload.MaxTokenBudget > 0 && approxTokens(content) > payload.MaxTokenBudget {
		report(15, "enforcing token budget", nil)
		content = truncateToBudget(content, payload.MaxTokenBudget)
	}

	ow := &OptimizationWorker{Capability: w.Capability}
	inner := job.Job{Payload: mustMarshal(job.OptimizationPayload{
		Content:       content,
		TargetModel:   payload.TargetModel,
		CurrentFormat: "text",
	})}
	raw, err := ow.Process(ctx, inner, report)
	if err != nil {
		return nil, err
	}

	var result job.OptimizationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	if payload.AggressiveOptimization {
		result.OptimizedContent = aggressiveTransform(result.OptimizedContent)
		result.Suggestions = append(result.Suggestions, "applied aggressive optimization pass")
	}
	return json.Marshal(result)
}

// aggressiveTransform widens the rule-based transform set for callers who
// opt into aggressiveOptimization: it additionally collapses redundant
// blank lines and strips filler phrases.
func aggressiveTransform(content string) string {
	lines := strings.Split(content, "\n")
	var out []string
	blank := false
	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		if trimmed == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, l)
	}
	collapsed := strings.Join(out, "\n")
	for _, filler := range []string{"in order to ", "it should be noted that ", "basically "} {
		collapsed = strings.ReplaceAll(collapsed, filler, "")
	}
	return collapsed
}
