// Copyright 2025 James Ross
package workers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/asyncforge/contentcore/internal/itemstore"
	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/provider"
	"github.com/asyncforge/contentcore/internal/workerrt"
)

// ClassificationWorker implements spec.md §4.5.a: classify free-text
// content into an agent/rule/template/snippet/prompt taxonomy, deriving a
// target-model list and a heuristic quality score.
type ClassificationWorker struct {
	Capability provider.Capability
	Items      itemstore.Store
}

func (w *ClassificationWorker) Process(ctx context.Context, j job.Job, report workerrt.ReportProgress) (json.RawMessage, error) {
	var payload job.ClassificationPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return nil, err
	}
	report(10, "extracting features", nil)
	features := extractFeatures(payload.Content)

	report(40, "classifying", nil)
	typ, subType, confidence, fallback := classify(ctx, w.Capability, payload.Content, features)

	targetModels := payload.TargetModels
	if len(targetModels) == 0 {
		targetModels = deriveTargetModels(typ, len(payload.Content))
	}

	result := job.ClassificationResult{
		Type:         typ,
		SubType:      subType,
		Confidence:   confidence,
		TargetModels: targetModels,
		Complexity:   complexityFromCount(features.featureCount()),
		QualityScore: float64(features.featureCount()) / 5.0,
	}
	if fallback {
		result.Metadata = map[string]string{"fallback": "true"}
	}

	report(80, "persisting", nil)
	if payload.ItemID != "" && w.Items != nil {
		item, _, _ := w.Items.Get(ctx, payload.ItemID)
		item.ID = payload.ItemID
		item.Content = payload.Content
		item.Classification = &result
		if err := w.Items.Upsert(ctx, item); err != nil {
			return nil, err
		}
	}

	return json.Marshal(result)
}

// classify calls the LLM classifier; on failure it falls back to the rule
// table named in spec.md §4.5.a. The fallback never returns an error: LLM
// failures here are swallowed internally, matching spec.md §8 scenario 5.
func classify(ctx context.Context, cap provider.Capability, content string, f contentFeatures) (typ, subType string, confidence float64, usedFallback bool) {
	if cap != nil {
		prompt := classifyPrompt(content, f)
		out, err := cap.Complete(ctx, prompt, provider.CompletionOptions{Model: "default", MaxTokens: 64})
		if err == nil {
			if t, s, c, ok := parseClassification(out); ok {
				return t, s, c, false
			}
		}
	}
	return ruleBasedClassify(content, f), "", 0.3 + 0.5*float64(f.featureCount())/5.0, true
}

func classifyPrompt(content string, f contentFeatures) string {
	return "Classify this content as agent, rule, template, snippet, or prompt.\nFeatures: " +
		strings.Join([]string{
			boolFeature("variables", f.HasVariables),
			boolFeature("imperative", f.HasImperativeVerbs),
			boolFeature("examples", f.HasExamples),
			boolFeature("conditionals", f.HasConditionals),
			boolFeature("constraints", f.HasConstraints),
			boolFeature("personality", f.HasPersonalityCues),
		}, ", ") + "\nContent: " + truncateRunes(content, 1000)
}

func boolFeature(name string, v bool) string {
	if v {
		return name
	}
	return "no-" + name
}

type classificationLLMOutput struct {
	Type       string  `json:"type"`
	SubType    string  `json:"subType"`
	Confidence float64 `json:"confidence"`
}

func parseClassification(raw string) (typ, subType string, confidence float64, ok bool) {
	var out classificationLLMOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out.Type == "" {
		return "", "", 0, false
	}
	return out.Type, out.SubType, out.Confidence, true
}

// ruleBasedClassify implements the exact fallback precedence named in
// spec.md §4.5.a.
func ruleBasedClassify(content string, f contentFeatures) string {
	lower := strings.ToLower(content)
	switch {
	case f.HasImperativeVerbs && f.HasPersonalityCues:
		return "agent"
	case f.HasConstraints && strings.Contains(lower, "rule"):
		return "rule"
	case f.HasVariables && strings.Contains(lower, "template"):
		return "template"
	case f.Length < 200 && !f.HasImperativeVerbs:
		return "snippet"
	default:
		return "prompt"
	}
}

func deriveTargetModels(typ string, contentLength int) []string {
	switch {
	case typ == "agent":
		return []string{"claude", "openai"}
	case typ == "template":
		return []string{"openai", "gemini"}
	case contentLength > 2000:
		return []string{"claude"}
	default:
		return []string{"claude", "openai", "gemini"}
	}
}
