// Copyright 2025 James Ross
package workers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/asyncforge/contentcore/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario 3 (spec.md §8): a quality_assessment job over a short,
// well-formed prompt must read as clear, structured, and internally
// consistent, detect the title and placeholder, land an overall above 0.5,
// and estimate at most "low" effort despite being thin on prompt-specific
// completeness/usability markers (no system role marker, no examples).
func TestQualityAssessmentWorkerScenario3WellFormedPrompt(t *testing.T) {
	ctx := context.Background()
	content := "# Title\n\nPlease do the following:\n1. Read {{input}}\n2. Summarize\n"

	assert.True(t, headerQRe.MatchString(content), "expected a markdown title")
	assert.True(t, variableQRe.MatchString(content), "expected a placeholder")

	w := &QualityAssessmentWorker{}
	payload := job.QualityAssessmentPayload{Content: content, Type: "prompt", Format: ".md"}
	j, err := job.New("job-1", job.TypeQualityAssessment, job.PriorityNormal, "u1", payload)
	require.NoError(t, err)

	raw, err := w.Process(ctx, j, noopReport)
	require.NoError(t, err)

	var result job.QualityAssessmentResult
	require.NoError(t, json.Unmarshal(raw, &result))

	assert.Greater(t, result.Clarity, 0.4)
	assert.Greater(t, result.Specificity, 0.4)
	assert.Greater(t, result.Consistency, 0.4)
	assert.Greater(t, result.Overall, 0.5)
	assert.Equal(t, "low", result.Recommendation.EstimatedEffort)

	var foundCompletenessIssue bool
	for _, issue := range result.Issues {
		if issue.Category == "Completeness" {
			foundCompletenessIssue = true
		}
	}
	assert.True(t, foundCompletenessIssue, "expected a completeness gap flagged for this prompt-typed content")
}

func TestQualityAssessmentWorkerFlagsLowReadabilityIssue(t *testing.T) {
	ctx := context.Background()
	longSentence := "This is an extraordinarily long and needlessly convoluted sentence that just keeps " +
		"going and going without any punctuation to break it up for the reader who is trying very hard to follow along with everything that is being said here today."
	w := &QualityAssessmentWorker{}
	payload := job.QualityAssessmentPayload{Content: longSentence, Type: "prompt", Format: ".md"}
	j, err := job.New("job-2", job.TypeQualityAssessment, job.PriorityNormal, "u1", payload)
	require.NoError(t, err)

	raw, err := w.Process(ctx, j, noopReport)
	require.NoError(t, err)

	var result job.QualityAssessmentResult
	require.NoError(t, json.Unmarshal(raw, &result))

	var foundReadabilityIssue bool
	for _, issue := range result.Issues {
		if issue.Category == "Readability" {
			foundReadabilityIssue = true
		}
	}
	assert.True(t, foundReadabilityIssue)
}

func TestRound2RoundsToTwoDecimalPlaces(t *testing.T) {
	assert.Equal(t, 0.67, round2(0.6666666))
}
