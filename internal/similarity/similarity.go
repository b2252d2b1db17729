// Copyright 2025 James Ross

// Package similarity implements the three comparison signals shared by the
// Deduplication and Similarity-Scoring workers: exact, structural, and
// semantic (spec.md §4.5.c). The semantic signal calls out to an
// internal/provider.Capability; callers supply one so this package stays
// free of any concrete LLM client dependency.
package similarity

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/asyncforge/contentcore/internal/provider"
)

// Kind labels which signal produced a SimilarityRecord (job.SimilarityRecord.Kind).
const (
	KindExact      = "exact"
	KindStructural = "structural"
	KindSemantic   = "semantic"
)

// NormalizeExact lowercases, collapses whitespace, and strips punctuation so
// two contents that differ only cosmetically bucket together for the exact
// signal.
var punctuation = regexp.MustCompile(`[^\w\s]`)
var whitespace = regexp.MustCompile(`\s+`)

func NormalizeExact(content string) string {
	lowered := strings.ToLower(content)
	stripped := punctuation.ReplaceAllString(lowered, "")
	return strings.TrimSpace(whitespace.ReplaceAllString(stripped, " "))
}

// ExactBuckets groups ids by their normalized content. Every bucket of size
// ≥2 is a set of exact duplicates (score 1.0, confidence 1.0).
func ExactBuckets(ids []string, contents map[string]string) map[string][]string {
	buckets := make(map[string][]string)
	for _, id := range ids {
		key := NormalizeExact(contents[id])
		buckets[key] = append(buckets[key], id)
	}
	return buckets
}

// Fingerprint is the structural marker set plus length used by the
// structural signal.
type Fingerprint struct {
	Markers map[string]bool
	Length  int
}

var (
	numberedListRe = regexp.MustCompile(`(?m)^\s*\d+[.)]\s`)
	bulletListRe   = regexp.MustCompile(`(?m)^\s*[-*•]\s`)
	headerRe       = regexp.MustCompile(`(?m)^#{1,6}\s`)
	variableRe     = regexp.MustCompile(`\{\{[^}]+\}\}`)
	codeBlockRe    = regexp.MustCompile("```")
	linkRe         = regexp.MustCompile(`\[[^\]]*\]\([^)]*\)|https?://`)
	tableRe        = regexp.MustCompile(`(?m)^\s*\|.*\|\s*$`)
)

// StructuralFingerprint extracts the marker set spec.md §4.5.c names:
// numbered_list, bullet_list, headers, variables, code_blocks, links, tables.
func StructuralFingerprint(content string) Fingerprint {
	markers := map[string]bool{
		"numbered_list": numberedListRe.MatchString(content),
		"bullet_list":   bulletListRe.MatchString(content),
		"headers":       headerRe.MatchString(content),
		"variables":     variableRe.MatchString(content),
		"code_blocks":   codeBlockRe.MatchString(content),
		"links":         linkRe.MatchString(content),
		"tables":        tableRe.MatchString(content),
	}
	return Fingerprint{Markers: markers, Length: len(content)}
}

// StructuralScore implements spec.md §4.5.c's weighted combination of marker
// overlap and length similarity.
func StructuralScore(a, b Fingerprint) float64 {
	var intersection, union int
	for k, av := range a.Markers {
		bv := b.Markers[k]
		if av && bv {
			intersection++
		}
		if av || bv {
			union++
		}
	}
	maxFP := union
	if maxFP == 0 {
		maxFP = 1
	}
	markerTerm := float64(intersection) / float64(maxFP)

	maxLen := a.Length
	if b.Length > maxLen {
		maxLen = b.Length
	}
	lengthTerm := 1.0
	if maxLen > 0 {
		lengthTerm = 1 - math.Abs(float64(a.Length-b.Length))/float64(maxLen)
	}
	return 0.7*markerTerm + 0.3*lengthTerm
}

// StructuralThreshold is the score a structural-signal pair must exceed to
// be emitted (spec.md §4.5.c).
const StructuralThreshold = 0.7

// JaccardSimilarity is the deterministic fallback for the semantic signal
// when the LLM provider fails (spec.md §7 "External-provider transient").
func JaccardSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA)
	for tok := range setB {
		if !setA[tok] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		out[tok] = true
	}
	return out
}

// SemanticScore asks the LLM for a 0.0-1.0 similarity score over the first
// 500 characters of each content; on provider failure it falls back to
// JaccardSimilarity, matching spec.md §4.5.c exactly.
func SemanticScore(ctx context.Context, cap provider.Capability, a, b string) (score float64, usedFallback bool, err error) {
	prompt := fmt.Sprintf(
		"Rate the semantic similarity of these two texts from 0.0 to 1.0, respond with only the number.\nA: %s\nB: %s",
		truncate(a, 500), truncate(b, 500),
	)
	out, cerr := cap.Complete(ctx, prompt, provider.CompletionOptions{Model: "default", MaxTokens: 8})
	if cerr != nil {
		return JaccardSimilarity(a, b), true, nil
	}
	parsed, perr := parseScore(out)
	if perr != nil {
		return JaccardSimilarity(a, b), true, nil
	}
	return parsed, false, nil
}

func parseScore(s string) (float64, error) {
	s = strings.TrimSpace(s)
	var f float64
	if _, err := fmt.Sscanf(s, "%f", &f); err != nil {
		return 0, err
	}
	if f < 0 || f > 1 {
		return 0, fmt.Errorf("score %v out of range", f)
	}
	return f, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
