// Copyright 2025 James Ross
package workers

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/provider"
	"github.com/asyncforge/contentcore/internal/workerrt"
)

// ContentAnalysisWorker implements SPEC_FULL.md §4.5.e: a composite worker
// that conditionally runs the quality-assessment and classification
// sub-routines in-process and produces an optional extractive summary.
type ContentAnalysisWorker struct {
	Capability provider.Capability
}

type contentAnalysisResult struct {
	Quality        *job.QualityAssessmentResult `json:"quality,omitempty"`
	Classification *job.ClassificationResult    `json:"classification,omitempty"`
	Summary        string                       `json:"summary,omitempty"`
	Tags           []string                     `json:"tags,omitempty"`
}

func (w *ContentAnalysisWorker) Process(ctx context.Context, j job.Job, report workerrt.ReportProgress) (json.RawMessage, error) {
	var payload job.ContentAnalysisPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return nil, err
	}

	out := contentAnalysisResult{}

	if payload.IncludeQuality {
		report(20, "quality sub-routine", nil)
		qw := &QualityAssessmentWorker{}
		raw, err := qw.Process(ctx, job.Job{Payload: mustMarshal(job.QualityAssessmentPayload{
			Content: payload.Content, Type: "prompt", Format: "text",
		})}, noopReport)
		if err != nil {
			return nil, err
		}
		var q job.QualityAssessmentResult
		if err := json.Unmarshal(raw, &q); err == nil {
			out.Quality = &q
		}
	}

	if payload.IncludeTags {
		report(50, "classification sub-routine", nil)
		cw := &ClassificationWorker{Capability: w.Capability}
		raw, err := cw.Process(ctx, job.Job{Payload: mustMarshal(job.ClassificationPayload{
			Content: payload.Content, Format: "text",
		})}, noopReport)
		if err != nil {
			return nil, err
		}
		var c job.ClassificationResult
		if err := json.Unmarshal(raw, &c); err == nil {
			out.Classification = &c
			out.Tags = []string{c.Type, c.Complexity}
		}
	}

	if payload.IncludeSummary {
		report(80, "summarizing", nil)
		out.Summary = extractiveSummary(ctx, w.Capability, payload.Content, 3)
	}

	return json.Marshal(out)
}

func mustMarshal(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func noopReport(int, string, interface{}) {}

var wordCharRe = regexp.MustCompile(`[a-zA-Z]+`)

// extractiveSummary ranks sentences by TF-style keyword density and returns
// the top n, preserving original order. Uses the Provider for a
// higher-quality summary when available, falling back to the pure keyword
// approach otherwise — no LLM dependency is required (SPEC_FULL.md §4.5.e).
func extractiveSummary(ctx context.Context, cap provider.Capability, content string, n int) string {
	if cap != nil {
		out, err := cap.Complete(ctx, "Summarize in at most "+strconv.Itoa(n)+" sentences:\n"+content, provider.CompletionOptions{MaxTokens: 256})
		if err == nil && strings.TrimSpace(out) != "" {
			return strings.TrimSpace(out)
		}
	}

	sentences := sentenceSplitRe.Split(strings.TrimSpace(content), -1)
	freq := make(map[string]int)
	for _, word := range wordCharRe.FindAllString(strings.ToLower(content), -1) {
		freq[word]++
	}

	type scored struct {
		idx   int
		text  string
		score float64
	}
	var scoredSentences []scored
	for i, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		words := wordCharRe.FindAllString(strings.ToLower(s), -1)
		var total float64
		for _, wd := range words {
			total += float64(freq[wd])
		}
		density := 0.0
		if len(words) > 0 {
			density = total / float64(len(words))
		}
		scoredSentences = append(scoredSentences, scored{idx: i, text: s, score: density})
	}
	sort.SliceStable(scoredSentences, func(a, b int) bool { return scoredSentences[a].score > scoredSentences[b].score })
	if len(scoredSentences) > n {
		scoredSentences = scoredSentences[:n]
	}
	sort.SliceStable(scoredSentences, func(a, b int) bool { return scoredSentences[a].idx < scoredSentences[b].idx })

	parts := make([]string, 0, len(scoredSentences))
	for _, s := range scoredSentences {
		parts = append(parts, s.text)
	}
	return strings.Join(parts, ". ")
}
