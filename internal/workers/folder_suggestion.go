// Copyright 2025 James Ross
package workers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/asyncforge/contentcore/internal/itemstore"
	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/workerrt"
)

// FolderSuggestionWorker implements SPEC_FULL.md §4.5.e: suggests a
// collection name from a small fixed taxonomy, no LLM call.
type FolderSuggestionWorker struct {
	Items itemstore.Store
}

type folderSuggestionResult struct {
	Folder string `json:"folder"`
}

// topicBuckets are the fixed keyword buckets SPEC_FULL.md §4.5.e names;
// the first bucket whose keyword appears in the content wins.
var topicBuckets = []struct {
	folder   string
	keywords []string
}{
	{"coding", []string{"code", "function", "api", "programming", "debug"}},
	{"writing", []string{"essay", "article", "blog", "story", "draft"}},
	{"research", []string{"research", "analysis", "study", "data", "survey"}},
	{"support", []string{"ticket", "customer", "help", "issue", "support"}},
	{"planning", []string{"plan", "roadmap", "schedule", "milestone", "timeline"}},
}

func suggestFolder(classificationType string, content string) string {
	lower := strings.ToLower(content)
	for _, bucket := range topicBuckets {
		for _, kw := range bucket.keywords {
			if strings.Contains(lower, kw) {
				return bucket.folder
			}
		}
	}
	switch classificationType {
	case "agent":
		return "agents"
	case "template":
		return "templates"
	case "rule":
		return "rules"
	default:
		return "general"
	}
}

func (w *FolderSuggestionWorker) Process(ctx context.Context, j job.Job, report workerrt.ReportProgress) (json.RawMessage, error) {
	var payload job.FolderSuggestionPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return nil, err
	}
	report(30, "classifying topic", nil)
	_, _, classificationType := featuresAndRuleClassify(payload.Content)
	folder := suggestFolder(classificationType, payload.Content)

	report(80, "persisting", nil)
	if payload.ItemID != "" && w.Items != nil {
		item, _, _ := w.Items.Get(ctx, payload.ItemID)
		item.ID = payload.ItemID
		item.FolderSuggestion = folder
		if err := w.Items.Upsert(ctx, item); err != nil {
			return nil, err
		}
	}

	return json.Marshal(folderSuggestionResult{Folder: folder})
}

// featuresAndRuleClassify reuses the classification worker's rule table
// without invoking an LLM, since folder_suggestion never calls one.
func featuresAndRuleClassify(content string) (contentFeatures, float64, string) {
	f := extractFeatures(content)
	return f, 0, ruleBasedClassify(content, f)
}
