// Copyright 2025 James Ross
package workers

import (
	"context"
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"github.com/asyncforge/contentcore/internal/job"
	"github.com/asyncforge/contentcore/internal/workerrt"
)

// QualityAssessmentWorker implements spec.md §4.5.d: five sub-scores whose
// unweighted mean is the overall score, a derived issue list, and an
// effort-estimated recommendation.
type QualityAssessmentWorker struct{}

var (
	headerQRe    = regexp.MustCompile(`(?m)^#{1,6}\s`)
	bulletQRe    = regexp.MustCompile(`(?m)^\s*[-*•]\s`)
	numberQRe    = regexp.MustCompile(`(?m)^\s*\d+[.)]\s`)
	codeFenceRe  = regexp.MustCompile("```")
	variableQRe  = regexp.MustCompile(`\{\{[^}]+\}\}|\$\{[^}]+\}|%\w+%`)
	sectionHRe   = regexp.MustCompile(`(?m)^#{1,6}\s.+$`)
	sectionNumRe = regexp.MustCompile(`(?m)^\s*\d+[.)]\s.+$`)
	sectionBulRe = regexp.MustCompile(`(?m)^\s*[-*•]\s.+$`)

	snakeCaseRe = regexp.MustCompile(`\{\{\s*[a-z]+_[a-z_]+\s*\}\}`)
	kebabCaseRe = regexp.MustCompile(`\{\{\s*[a-z]+-[a-z-]+\s*\}\}`)
	camelCaseRe = regexp.MustCompile(`\{\{\s*[a-z]+[A-Z]\w*\s*\}\}`)
	lowerCaseRe = regexp.MustCompile(`\{\{\s*[a-z]+\s*\}\}`)

	systemMarkerRe  = regexp.MustCompile(`(?i)\bsystem:\b|\buser:\b|\bassistant:\b`)
	roleMarkerRe    = regexp.MustCompile(`(?i)\byou are\b|\bpersona\b|\brole\b`)
	errorHandlingRe = regexp.MustCompile(`(?i)\berror\b|\bexception\b|\bfallback\b|\bfailure\b`)
	validationRe    = regexp.MustCompile(`(?i)\bvalidate\b|\bvalidation\b|\bverify\b`)
)

var jargonWords = map[string]bool{
	"algorithm": true, "paradigm": true, "heuristic": true, "idempotent": true,
	"asynchronous": true, "polymorphic": true, "middleware": true,
	"orchestration": true, "instantiate": true, "deprecate": true,
}

func (w *QualityAssessmentWorker) Process(_ context.Context, j job.Job, report workerrt.ReportProgress) (json.RawMessage, error) {
	var payload job.QualityAssessmentPayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return nil, err
	}

	report(15, "analyzing structure", nil)
	clarity, fleschScore, avgSentenceLen, avgLineLen := readabilityScore(payload.Content)
	specificity := structureScore(payload.Content)
	indentOK := indentationConsistent(payload.Content)

	report(45, "checking completeness", nil)
	completeness := completenessScore(payload.Content, payload.Type)

	report(65, "checking consistency", nil)
	consistency, consistencyIssueCount := consistencyScore(payload.Content)

	report(80, "checking usability", nil)
	usability := usabilityScore(payload.Content)

	overall := round2((clarity + completeness + specificity + consistency + usability) / 5)

	issues := buildIssues(fleschScore, avgSentenceLen, completeness, indentOK, avgLineLen, consistencyIssueCount)
	recommendation := buildRecommendation(issues, overall)

	result := job.QualityAssessmentResult{
		Clarity:        round2(clarity),
		Completeness:   round2(completeness),
		Specificity:    round2(specificity),
		Consistency:    round2(consistency),
		Usability:      round2(usability),
		Overall:        overall,
		Issues:         issues,
		Suggestions:    suggestionsFromIssues(issues),
		Recommendation: recommendation,
	}
	return json.Marshal(result)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// readabilityScore computes the simplified Flesch reading-ease score
// (spec.md §4.5.d) and maps it to a [0,1] clarity score.
func readabilityScore(content string) (clarity, flesch, avgSentenceLen, avgLineLen float64) {
	sentences := sentenceSplitRe.Split(strings.TrimSpace(content), -1)
	words := splitWords(content)
	nonEmptySentences := 0
	for _, s := range sentences {
		if strings.TrimSpace(s) != "" {
			nonEmptySentences++
		}
	}
	if nonEmptySentences == 0 {
		nonEmptySentences = 1
	}
	wordCount := len(words)
	if wordCount == 0 {
		wordCount = 1
	}
	avgSentenceLen = float64(wordCount) / float64(nonEmptySentences)

	totalChars := 0
	for _, wd := range words {
		totalChars += len(wd)
	}
	avgWordLen := float64(totalChars) / float64(wordCount)

	flesch = 206.835 - 1.015*avgSentenceLen - 84.6*avgWordLen/4.7
	flesch = math.Max(0, math.Min(100, flesch))

	lines := strings.Split(content, "\n")
	lineTotal := 0
	lineCount := 0
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lineTotal += len(l)
		lineCount++
	}
	if lineCount == 0 {
		lineCount = 1
	}
	avgLineLen = float64(lineTotal) / float64(lineCount)

	return flesch / 100, flesch, avgSentenceLen, avgLineLen
}

func fleschLevel(flesch float64) string {
	switch {
	case flesch >= 90:
		return "very easy"
	case flesch >= 80:
		return "easy"
	case flesch >= 70:
		return "fairly easy"
	case flesch >= 60:
		return "standard"
	case flesch >= 50:
		return "fairly difficult"
	case flesch >= 30:
		return "difficult"
	default:
		return "very confusing"
	}
}

func jargonLevel(content string) string {
	words := splitWords(strings.ToLower(content))
	if len(words) == 0 {
		return "low"
	}
	hits := 0
	for _, wd := range words {
		if jargonWords[strings.Trim(wd, ".,;:!?")] {
			hits++
		}
	}
	ratio := float64(hits) / float64(len(words))
	switch {
	case ratio > 0.05:
		return "high"
	case ratio > 0.01:
		return "medium"
	default:
		return "low"
	}
}

// structureScore implements the Structure section (spec.md §4.5.d), mapped
// onto the "specificity" output sub-score: the fraction of structural
// markers present in the content.
func structureScore(content string) float64 {
	markers := []bool{
		headerQRe.MatchString(content),
		bulletQRe.MatchString(content),
		numberQRe.MatchString(content),
		codeFenceRe.MatchString(content),
		variableQRe.MatchString(content),
	}
	count := 0
	for _, m := range markers {
		if m {
			count++
		}
	}
	return float64(count) / float64(len(markers))
}

func sectionCount(content string) int {
	return len(sectionHRe.FindAllString(content, -1)) +
		len(sectionNumRe.FindAllString(content, -1)) +
		len(sectionBulRe.FindAllString(content, -1))
}

// indentationConsistent checks whether every non-blank indented line uses a
// multiple of 2 or 4 spaces.
func indentationConsistent(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := 0
		for _, r := range line {
			if r != ' ' {
				break
			}
			indent++
		}
		if indent > 0 && indent%2 != 0 && indent%4 != 0 {
			return false
		}
	}
	return true
}

func completenessScore(content, itemType string) float64 {
	lower := strings.ToLower(content)
	checks := []bool{
		strings.Contains(lower, "title") || headerQRe.MatchString(content),
		strings.Contains(lower, "description"),
		examplesRe.MatchString(content),
		imperativeRe.MatchString(content) || strings.Contains(lower, "instructions"),
		constraintRe.MatchString(content),
		variableQRe.MatchString(content),
	}
	switch itemType {
	case "prompt":
		checks = append(checks, systemMarkerRe.MatchString(content))
	case "agent":
		checks = append(checks, personalityRe.MatchString(content) || roleMarkerRe.MatchString(content))
	case "template":
		checks = append(checks, variableQRe.MatchString(content))
	}
	passed := 0
	for _, c := range checks {
		if c {
			passed++
		}
	}
	return float64(passed) / float64(len(checks))
}

// consistencyScore accumulates the issue classes spec.md §4.5.d names:
// mixed bullet characters, non-monotonic header levels, mixed variable
// naming styles.
func consistencyScore(content string) (score float64, issueCount int) {
	bulletChars := map[rune]bool{}
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		if len(trimmed) > 0 && (trimmed[0] == '-' || trimmed[0] == '*' || trimmed[0] == '•') {
			bulletChars[rune(trimmed[0])] = true
		}
	}
	if len(bulletChars) > 1 {
		issueCount++
	}

	lastLevel := 0
	nonMonotonic := false
	for _, line := range strings.Split(content, "\n") {
		if m := headerQRe.FindString(line); m != "" {
			level := strings.Count(strings.TrimSpace(m), "#")
			if lastLevel != 0 && level > lastLevel+1 {
				nonMonotonic = true
			}
			lastLevel = level
		}
	}
	if nonMonotonic {
		issueCount++
	}

	stylesPresent := 0
	for _, present := range []bool{
		snakeCaseRe.MatchString(content),
		kebabCaseRe.MatchString(content),
		camelCaseRe.MatchString(content),
		lowerCaseRe.MatchString(content),
	} {
		if present {
			stylesPresent++
		}
	}
	if stylesPresent > 1 {
		issueCount++
	}

	return math.Max(0, 1-0.2*float64(issueCount)), issueCount
}

func usabilityScore(content string) float64 {
	sections := sectionCount(content)
	modular := sections > 1 && averageSectionLength(content) <= 500
	reusable := variableQRe.MatchString(content) || strings.Contains(strings.ToLower(content), "template")

	checks := []bool{
		examplesRe.MatchString(content),
		imperativeRe.MatchString(content),
		errorHandlingRe.MatchString(content),
		validationRe.MatchString(content),
		modular,
		reusable,
	}
	passed := 0
	for _, c := range checks {
		if c {
			passed++
		}
	}
	return float64(passed) / float64(len(checks))
}

func averageSectionLength(content string) float64 {
	parts := sectionHRe.Split(content, -1)
	if len(parts) == 0 {
		return float64(len(content))
	}
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	return float64(total) / float64(len(parts))
}

func buildIssues(flesch, avgSentenceLen, completeness float64, indentOK bool, avgLineLen float64, consistencyIssues int) []job.QualityIssue {
	var issues []job.QualityIssue
	if flesch < 30 {
		issues = append(issues, job.QualityIssue{Severity: "high", Category: "Readability", Description: "content is difficult to read", Suggestion: "shorten sentences and simplify vocabulary"})
	}
	if avgSentenceLen > 25 {
		issues = append(issues, job.QualityIssue{Severity: "medium", Category: "Readability", Description: "sentences are too long on average", Suggestion: "break long sentences into shorter ones"})
	}
	if completeness < 0.6 {
		issues = append(issues, job.QualityIssue{Severity: "high", Category: "Completeness", Description: "content is missing several expected elements", Suggestion: "add missing sections such as examples or constraints"})
	}
	if !indentOK {
		issues = append(issues, job.QualityIssue{Severity: "medium", Category: "Structure", Description: "indentation is inconsistent", Suggestion: "use a consistent indent width of 2 or 4 spaces"})
	}
	if avgLineLen > 120 {
		issues = append(issues, job.QualityIssue{Severity: "low", Category: "Structure", Description: "lines are long on average", Suggestion: "wrap long lines for readability"})
	}
	for i := 0; i < consistencyIssues; i++ {
		issues = append(issues, job.QualityIssue{Severity: "medium", Category: "Consistency", Description: "inconsistent formatting detected", Suggestion: "standardize formatting conventions throughout"})
	}
	return issues
}

func suggestionsFromIssues(issues []job.QualityIssue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Suggestion)
	}
	return out
}

var severityWeight = map[string]int{"low": 1, "medium": 2, "high": 3, "critical": 4}

func buildRecommendation(issues []job.QualityIssue, overall float64) job.QualityRecommendation {
	total := 0
	for _, i := range issues {
		total += severityWeight[i.Severity]
	}
	effort := "low"
	switch {
	case total > 8:
		effort = "high"
	case total > 3:
		effort = "medium"
	}

	priority := "low"
	switch {
	case overall < 0.5:
		priority = "high"
	case overall < 0.75:
		priority = "medium"
	}

	actionItems := make([]string, 0, len(issues))
	for _, i := range issues {
		actionItems = append(actionItems, i.Suggestion)
	}

	overallLabel := "good"
	switch {
	case overall < 0.5:
		overallLabel = "poor"
	case overall < 0.75:
		overallLabel = "fair"
	}

	return job.QualityRecommendation{
		Overall:         overallLabel,
		Priority:        priority,
		ActionItems:     actionItems,
		EstimatedEffort: effort,
	}
}
