// Copyright 2025 James Ross
package workers

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/workerrt"
)

// ConversionWorker implements SPEC_FULL.md §4.5.e: reformat content between
// declared formats using structural transforms, no LLM call.
type ConversionWorker struct{}

type conversionResult struct {
	Content string `json:"content"`
}

func (w *ConversionWorker) Process(_ context.Context, j job.Job, report workerrt.ReportProgress) (json.RawMessage, error) {
	var payload job.ConversionPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return nil, err
	}
	report(50, "converting", nil)
	out := convert(payload.Content, payload.FromFormat, payload.ToFormat)
	return json.Marshal(conversionResult{Content: out})
}

var mdBulletRe = regexp.MustCompile(`(?m)^\s*[-*]\s+`)
var mdHeaderLineRe = regexp.MustCompile(`(?m)^#{1,6}\s*`)

func convert(content, from, to string) string {
	switch {
	case from == to:
		return content
	case to == ".txt":
		out := mdBulletRe.ReplaceAllString(content, "")
		out = mdHeaderLineRe.ReplaceAllString(out, "")
		return out
	case from == ".txt" && to == ".md":
		lines := strings.Split(content, "\n")
		for i, line := range lines {
			if strings.TrimSpace(line) != "" {
				lines[i] = "- " + line
			}
		}
		return strings.Join(lines, "\n")
	case to == ".json":
		lines := strings.Split(strings.TrimSpace(content), "\n")
		items := make([]string, 0, len(lines))
		for _, l := range lines {
			if strings.TrimSpace(l) == "" {
				continue
			}
			b, _ := json.Marshal(l)
			items = append(items, string(b))
		}
		return "[" + strings.Join(items, ",") + "]"
	case to == ".yaml":
		lines := strings.Split(strings.TrimSpace(content), "\n")
		var b strings.Builder
		for _, l := range lines {
			if strings.TrimSpace(l) == "" {
				continue
			}
			b.WriteString("- " + strconv.Quote(l) + "\n")
		}
		return b.String()
	default:
		return content
	}
}
