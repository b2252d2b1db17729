// Copyright 2025 James Ross
package job

// Payload variants, one per job Type (spec.md §6). Every variant carries UserID
// in the envelope (Job.UserID); the fields below are the type-specific body.
// Model these as a tagged variant keyed by Type rather than relying on
// runtime field-probing: the worker for a type receives only its own variant.

type ClassificationPayload struct {
	Content      string   `json:"content"`
	Format       string   `json:"format"`
	TargetModels []string `json:"targetModels,omitempty"`
	ItemID       string   `json:"itemId,omitempty"`
}

type OptimizationPayload struct {
	Content       string `json:"content"`
	TargetModel   string `json:"targetModel"`
	CurrentFormat string `json:"currentFormat"`
	ItemID        string `json:"itemId,omitempty"`
}

type ConversionPayload struct {
	Content    string `json:"content"`
	FromFormat string `json:"fromFormat"`
	ToFormat   string `json:"toFormat"`
}

type DedupItem struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Name    string `json:"name"`
}

type DeduplicationPayload struct {
	Items     []DedupItem `json:"items"`
	Threshold float64     `json:"threshold"`
}

type QualityAssessmentPayload struct {
	Content string `json:"content"`
	Type    string `json:"type"`
	Format  string `json:"format"`
}

type SimilarityScoringPayload struct {
	SourceContent string `json:"sourceContent"`
	TargetContent string `json:"targetContent"`
	Algorithm     string `json:"algorithm"`
}

type EmbeddingGenerationPayload struct {
	Content    string `json:"content"`
	ProviderID string `json:"providerId,omitempty"`
	ItemID     string `json:"itemId,omitempty"`
}

type ContentAnalysisPayload struct {
	Content        string `json:"content"`
	IncludeQuality bool   `json:"includeQuality,omitempty"`
	IncludeSummary bool   `json:"includeSummary,omitempty"`
	IncludeTags    bool   `json:"includeTags,omitempty"`
}

type SemanticClusteringPayload struct {
	Algorithm   string   `json:"algorithm"`
	NumClusters int      `json:"numClusters,omitempty"`
	Threshold   float64  `json:"threshold"`
	ItemIDs     []string `json:"itemIds,omitempty"`
}

type ModelOptimizationPayload struct {
	Content                string `json:"content"`
	TargetModel            string `json:"targetModel"`
	MaxTokenBudget         int    `json:"maxTokenBudget,omitempty"`
	PrioritizeQuality      bool   `json:"prioritizeQuality,omitempty"`
	AggressiveOptimization bool   `json:"aggressiveOptimization,omitempty"`
}

type ContextAssemblyPayload struct {
	Intent         string `json:"intent"`
	Query          string `json:"query,omitempty"`
	TargetAudience string `json:"targetAudience,omitempty"`
	Domain         string `json:"domain,omitempty"`
	Strategy       string `json:"strategy"`
	TargetModel    string `json:"targetModel,omitempty"`
	MaxTokens      int    `json:"maxTokens"`
}

type FolderSuggestionPayload struct {
	Content string `json:"content"`
	ItemID  string `json:"itemId,omitempty"`
}

type ItemStub struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type BatchImportPayload struct {
	Items []ItemStub `json:"items"`
}

type IntelligencePipelinePayload struct {
	ItemIDs    []string               `json:"itemIds"`
	Operations []string               `json:"operations"`
	Options    map[string]interface{} `json:"options,omitempty"`
}

// Result variants produced by each worker body and stored on Job.Result.

type ClassificationResult struct {
	Type         string            `json:"type"`
	SubType      string            `json:"subType,omitempty"`
	Confidence   float64           `json:"confidence"`
	TargetModels []string          `json:"targetModels"`
	Complexity   string            `json:"complexity"`
	QualityScore float64           `json:"qualityScore"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type OptimizationResult struct {
	OptimizedContent string            `json:"optimizedContent"`
	Suggestions      []string          `json:"suggestions"`
	Metrics          map[string]float64 `json:"metrics"`
	ImprovementScore float64           `json:"improvementScore"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

type SimilarityRecord struct {
	ID1        string  `json:"id1"`
	ID2        string  `json:"id2"`
	Score      float64 `json:"score"`
	Kind       string  `json:"kind"` // exact | structural | semantic
	Confidence float64 `json:"confidence"`
}

type DuplicateGroup struct {
	CanonicalID  string   `json:"canonicalId"`
	DuplicateIDs []string `json:"duplicateIds"`
	Similarity   float64  `json:"similarity"`
}

type DeduplicationResult struct {
	Groups       []DuplicateGroup   `json:"groups"`
	Similarities []SimilarityRecord `json:"similarities"`
}

type QualityIssue struct {
	Severity    string `json:"severity"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion"`
}

type QualityRecommendation struct {
	Overall        string   `json:"overall"`
	Priority       string   `json:"priority"`
	ActionItems    []string `json:"actionItems"`
	EstimatedEffort string  `json:"estimatedEffort"`
}

type QualityAssessmentResult struct {
	Clarity        float64               `json:"clarity"`
	Completeness   float64               `json:"completeness"`
	Specificity    float64               `json:"specificity"`
	Consistency    float64               `json:"consistency"`
	Usability      float64               `json:"usability"`
	Overall        float64               `json:"overall"`
	Issues         []QualityIssue        `json:"issues"`
	Suggestions    []string              `json:"suggestions"`
	Recommendation QualityRecommendation `json:"recommendation"`
}

type ClusterMembership struct {
	ItemID    string `json:"itemId"`
	ClusterID int    `json:"clusterId"`
	Noise     bool   `json:"noise,omitempty"`
}

type SemanticClusteringResult struct {
	Algorithm   string              `json:"algorithm"`
	NumClusters int                 `json:"numClusters"`
	Memberships []ClusterMembership `json:"memberships"`
}
