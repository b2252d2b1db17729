// Copyright 2025 James Ross
package workers

import (
	"context"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/asyncforge/contentcore/internal/itemstore"
	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/provider"
	"github.com/asyncforge/contentcore/internal/workerrt"
)

// OptimizationWorker implements spec.md §4.5.b: rewrite content to better
// suit a target model, producing an improvement score from before/after
// metric deltas.
type OptimizationWorker struct {
	Capability provider.Capability
	Items      itemstore.Store
}

type contentMetrics struct {
	Length        int
	Sentences     int
	Paragraphs    int
	HasStructure  bool
	Clarity       float64
	Specificity   float64
	Compatibility float64
}

var sentenceSplitRe = regexp.MustCompile(`[.!?]+\s+`)
var specificTermRe = regexp.MustCompile(`\b\d+(\.\d+)?\b|\b[A-Z][a-z]+[A-Z]\w*\b`)
var structureRe = regexp.MustCompile(`(?m)^\s*(#|[-*•]|\d+[.)])`)

func analyzeContent(content, targetModel string) contentMetrics {
	sentences := sentenceSplitRe.Split(strings.TrimSpace(content), -1)
	nonEmptySentences := 0
	totalWords := 0
	for _, s := range sentences {
		if strings.TrimSpace(s) == "" {
			continue
		}
		nonEmptySentences++
		totalWords += len(splitWords(s))
	}
	if nonEmptySentences == 0 {
		nonEmptySentences = 1
	}
	meanSentenceLen := float64(totalWords) / float64(nonEmptySentences)
	clarity := clamp01(1 - meanSentenceLen/40)

	words := splitWords(content)
	specificHits := len(specificTermRe.FindAllString(content, -1))
	specificity := clamp01(float64(specificHits) / math.Max(1, float64(len(words))) * 10)

	hasStructure := structureRe.MatchString(content)

	compatibility := 0.5
	lowerModel := strings.ToLower(targetModel)
	switch {
	case strings.Contains(lowerModel, "openai") && hasStructure:
		compatibility = 0.9
	case strings.Contains(lowerModel, "claude") && len(content) > 500:
		compatibility = 0.85
	case hasStructure:
		compatibility = 0.75
	}

	return contentMetrics{
		Length:        len(content),
		Sentences:     nonEmptySentences,
		Paragraphs:    len(strings.Split(strings.TrimSpace(content), "\n\n")),
		HasStructure:  hasStructure,
		Clarity:       clarity,
		Specificity:   specificity,
		Compatibility: compatibility,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func opportunities(m contentMetrics) []string {
	var out []string
	if m.Clarity < 0.6 {
		out = append(out, "improve clarity by shortening sentences")
	}
	if m.Specificity < 0.3 {
		out = append(out, "add concrete, specific detail")
	}
	if !m.HasStructure {
		out = append(out, "add structural formatting")
	}
	if m.Compatibility < 0.7 {
		out = append(out, "adjust formatting for target model compatibility")
	}
	return out
}

func (w *OptimizationWorker) Process(ctx context.Context, j job.Job, report workerrt.ReportProgress) (json.RawMessage, error) {
	var payload job.OptimizationPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return nil, err
	}
	report(10, "analyzing content", nil)
	before := analyzeContent(payload.Content, payload.TargetModel)
	opps := opportunities(before)

	report(50, "optimizing", nil)
	optimized, suggestions, fallback := optimize(ctx, w.Capability, payload.Content, payload.TargetModel, opps)

	after := analyzeContent(optimized, payload.TargetModel)
	improvement := ((after.Clarity - before.Clarity) +
		(after.Specificity - before.Specificity) +
		(boolDelta(after.HasStructure, before.HasStructure)) +
		(after.Compatibility - before.Compatibility)) / 4

	result := job.OptimizationResult{
		OptimizedContent: optimized,
		Suggestions:      suggestions,
		Metrics: map[string]float64{
			"clarityBefore":       before.Clarity,
			"clarityAfter":        after.Clarity,
			"specificityBefore":   before.Specificity,
			"specificityAfter":    after.Specificity,
			"compatibilityBefore": before.Compatibility,
			"compatibilityAfter":  after.Compatibility,
		},
		ImprovementScore: improvement,
	}
	if fallback {
		result.Metadata = map[string]string{"fallback": "true"}
	}

	report(90, "persisting", nil)
	if payload.ItemID != "" && w.Items != nil {
		item, _, _ := w.Items.Get(ctx, payload.ItemID)
		item.ID = payload.ItemID
		item.Optimization = &result
		now := time.Now().UTC()
		item.OptimizedAt = &now
		if err := w.Items.Upsert(ctx, item); err != nil {
			return nil, err
		}
	}

	return json.Marshal(result)
}

func boolDelta(after, before bool) float64 {
	a, b := 0.0, 0.0
	if after {
		a = 1
	}
	if before {
		b = 1
	}
	return a - b
}

type optimizationLLMOutput struct {
	OptimizedContent string   `json:"optimizedContent"`
	Suggestions      []string `json:"suggestions"`
}

func optimize(ctx context.Context, cap provider.Capability, content, targetModel string, opps []string) (optimized string, suggestions []string, usedFallback bool) {
	if cap != nil {
		prompt := "Rewrite this content for " + targetModel + " addressing: " + strings.Join(opps, "; ") + "\n\n" + content
		out, err := cap.Complete(ctx, prompt, provider.CompletionOptions{Model: targetModel, MaxTokens: 2048})
		if err == nil {
			var parsed optimizationLLMOutput
			if jsonErr := json.Unmarshal([]byte(out), &parsed); jsonErr == nil && parsed.OptimizedContent != "" {
				return parsed.OptimizedContent, parsed.Suggestions, false
			}
		}
	}
	return ruleBasedOptimize(content, targetModel), opps, true
}

// ruleBasedOptimize applies the two transforms spec.md §4.5.b names when
// the LLM is unavailable: convert prose to a numbered list when the
// content is long-form and unstructured, and prepend a system preamble for
// openai-family targets.
func ruleBasedOptimize(content, targetModel string) string {
	out := content
	sentences := sentenceSplitRe.Split(strings.TrimSpace(content), -1)
	if len(sentences) > 3 && !structureRe.MatchString(content) {
		var b strings.Builder
		n := 1
		for _, s := range sentences {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			b.WriteString(strconv.Itoa(n))
			b.WriteString(". ")
			b.WriteString(s)
			b.WriteString("\n")
			n++
		}
		out = b.String()
	}
	if strings.Contains(strings.ToLower(targetModel), "openai") {
		out = "You are a helpful, precise assistant.\n\n" + out
	}
	return out
}
