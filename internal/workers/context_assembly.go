// Copyright 2025 James Ross
package workers

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/workerrt"
)

// CandidateItem is one item eligible for inclusion in an assembled context
// bundle.
type CandidateItem struct {
	ID        string
	Content   string
	UpdatedAt time.Time
}

// CandidateSource supplies the pool of items context_assembly ranks and
// trims from. No external search index is in scope (SPEC_FULL.md §4.5.e);
// ranking is simple keyword/recency scoring over whatever this source
// returns.
type CandidateSource interface {
	Candidates(ctx context.Context, domain string) ([]CandidateItem, error)
}

// ContextAssemblyWorker implements SPEC_FULL.md §4.5.e: assembles a
// bounded-size context bundle from intent/query/domain/targetAudience.
type ContextAssemblyWorker struct {
	Source CandidateSource
}

type contextAssemblyResult struct {
	Bundle     string   `json:"bundle"`
	ItemIDs    []string `json:"itemIds"`
	TokenCount int      `json:"tokenCount"`
}

const defaultMaxTokens = 8000

func (w *ContextAssemblyWorker) Process(ctx context.Context, j job.Job, report workerrt.ReportProgress) (json.RawMessage, error) {
	var payload job.ContextAssemblyPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return nil, err
	}
	maxTokens := payload.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	report(20, "gathering candidates", nil)
	candidates, err := w.Source.Candidates(ctx, payload.Domain)
	if err != nil {
		return nil, err
	}

	report(50, "ranking", nil)
	keywords := keywordSet(payload.Intent, payload.Query, payload.TargetAudience)
	ranked := rankCandidates(candidates, keywords)

	report(80, "trimming to budget", nil)
	var bundle strings.Builder
	var itemIDs []string
	tokenCount := 0
	for _, c := range ranked {
		t := approxTokens(c.Content)
		if tokenCount+t > maxTokens {
			remaining := maxTokens - tokenCount
			if remaining <= 0 {
				break
			}
			bundle.WriteString(truncateToBudget(c.Content, remaining))
			itemIDs = append(itemIDs, c.ID)
			tokenCount = maxTokens
			break
		}
		bundle.WriteString(c.Content)
		bundle.WriteString("\n\n")
		itemIDs = append(itemIDs, c.ID)
		tokenCount += t
	}

	return json.Marshal(contextAssemblyResult{Bundle: bundle.String(), ItemIDs: itemIDs, TokenCount: tokenCount})
}

func keywordSet(parts ...string) map[string]bool {
	out := make(map[string]bool)
	for _, p := range parts {
		for _, w := range splitWords(strings.ToLower(p)) {
			if w != "" {
				out[w] = true
			}
		}
	}
	return out
}

type rankedCandidate struct {
	CandidateItem
	score float64
}

// rankCandidates scores each candidate by keyword overlap plus a recency
// bonus, matching SPEC_FULL.md §4.5.e's "simple keyword/recency ranking".
func rankCandidates(candidates []CandidateItem, keywords map[string]bool) []CandidateItem {
	var now time.Time
	for _, c := range candidates {
		if c.UpdatedAt.After(now) {
			now = c.UpdatedAt
		}
	}

	scored := make([]rankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		overlap := 0
		for _, w := range splitWords(strings.ToLower(c.Content)) {
			if keywords[w] {
				overlap++
			}
		}
		recency := 0.0
		if !now.IsZero() {
			age := now.Sub(c.UpdatedAt).Hours()
			recency = 1.0 / (1.0 + age/24.0)
		}
		scored = append(scored, rankedCandidate{CandidateItem: c, score: float64(overlap) + recency})
	}
	sort.SliceStable(scored, func(i, k int) bool { return scored[i].score > scored[k].score })

	out := make([]CandidateItem, len(scored))
	for i, s := range scored {
		out[i] = s.CandidateItem
	}
	return out
}
