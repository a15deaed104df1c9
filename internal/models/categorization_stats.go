package models

import (
	"fjacquet/statement-import/internal/logging"
)

// ClassificationSource tells where a transaction's category came from.
type ClassificationSource string

const (
	SourceCache         ClassificationSource = "cache"
	SourceAIService     ClassificationSource = "ai"
	SourceManualPending ClassificationSource = "manual_pending"
)

// ClassificationResult wraps a transaction with the outcome of classifying it.
// Strategy names the matching strategy, or why a pending result was not
// classified.
type ClassificationResult struct {
	Transaction ParsedTransaction    `json:"transaction"`
	Source      ClassificationSource `json:"source"`
	Confidence  *float64             `json:"confidence,omitempty"`
	Strategy    string               `json:"strategy,omitempty"`
}

// NeedsReview reports whether a person has to pick the category.
func (r ClassificationResult) NeedsReview() bool {
	return r.Source == SourceManualPending
}

// ClassificationStats tracks statistics for one classification run
type ClassificationStats struct {
	CachedCount       int `json:"cached_count"`
	AIClassifiedCount int `json:"ai_classified_count"`
	NeedsReviewCount  int `json:"needs_review_count"`
	ParseErrorCount   int `json:"parse_error_count"`
}

// Classified returns the number of transactions that received a category.
func (cs ClassificationStats) Classified() int {
	return cs.CachedCount + cs.AIClassifiedCount
}

// Record counts one result by its source.
func (cs *ClassificationStats) Record(source ClassificationSource) {
	switch source {
	case SourceCache:
		cs.CachedCount++
	case SourceAIService:
		cs.AIClassifiedCount++
	default:
		cs.NeedsReviewCount++
	}
}

// GetSuccessRate returns the share of parsed transactions classified without
// review, as a percentage.
func (cs ClassificationStats) GetSuccessRate() float64 {
	total := cs.Classified() + cs.NeedsReviewCount
	if total == 0 {
		return 0.0
	}
	return float64(cs.Classified()) / float64(total) * 100.0
}

// LogSummary logs a summary of classification statistics
func (cs ClassificationStats) LogSummary(logger logging.Logger) {
	if logger == nil {
		return
	}

	logger.Info("Classification summary",
		logging.Field{Key: "cached", Value: cs.CachedCount},
		logging.Field{Key: "ai_classified", Value: cs.AIClassifiedCount},
		logging.Field{Key: "needs_review", Value: cs.NeedsReviewCount},
		logging.Field{Key: "parse_errors", Value: cs.ParseErrorCount},
		logging.Field{Key: "success_rate", Value: cs.GetSuccessRate()},
	)
}
