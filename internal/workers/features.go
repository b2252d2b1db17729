// Copyright 2025 James Ross
package workers

import "regexp"

// contentFeatures are the structural signals spec.md §4.5.a names: length,
// word count, variable placeholders, imperative verbs, examples,
// conditionals, constraints, and personality cues. Shared by the
// classification and content-analysis workers.
type contentFeatures struct {
	Length             int
	WordCount          int
	HasVariables       bool
	HasImperativeVerbs bool
	HasExamples        bool
	HasConditionals    bool
	HasConstraints     bool
	HasPersonalityCues bool
}

var (
	variablesRe   = regexp.MustCompile(`\{\{[^}]+\}\}`)
	imperativeRe  = regexp.MustCompile(`(?im)^\s*(write|create|generate|explain|analyze|summarize|list|provide|describe|translate)\b`)
	examplesRe    = regexp.MustCompile(`(?i)\bexample\b|\be\.g\.|\bfor instance\b`)
	conditionalRe = regexp.MustCompile(`(?i)\bif\s|\bwhen\s|\bunless\s`)
	constraintRe  = regexp.MustCompile(`(?i)\bmust\b|\bshould\b|\brequired\b|\brule\b`)
	personalityRe = regexp.MustCompile(`(?i)\byou are\b|\byour personality\b|\bact as\b|\bpersona\b`)
)

func extractFeatures(content string) contentFeatures {
	return contentFeatures{
		Length:             len(content),
		WordCount:          len(splitWords(content)),
		HasVariables:       variablesRe.MatchString(content),
		HasImperativeVerbs: imperativeRe.MatchString(content),
		HasExamples:        examplesRe.MatchString(content),
		HasConditionals:    conditionalRe.MatchString(content),
		HasConstraints:     constraintRe.MatchString(content),
		HasPersonalityCues: personalityRe.MatchString(content),
	}
}

func splitWords(content string) []string {
	var words []string
	start := -1
	for i, r := range content {
		isSpace := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if !isSpace && start == -1 {
			start = i
		}
		if isSpace && start != -1 {
			words = append(words, content[start:i])
			start = -1
		}
	}
	if start != -1 {
		words = append(words, content[start:])
	}
	return words
}

// featureCount returns how many of the five complexity-relevant signals are
// present (spec.md §4.5.a "0-5 feature count").
func (f contentFeatures) featureCount() int {
	count := 0
	for _, present := range []bool{f.HasVariables, f.HasImperativeVerbs, f.HasExamples, f.HasConditionals, f.HasConstraints} {
		if present {
			count++
		}
	}
	return count
}

func complexityFromCount(count int) string {
	switch {
	case count <= 1:
		return "low"
	case count <= 3:
		return "medium"
	default:
		return "high"
	}
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
