package categorizer

import (
	"fmt"
	"strings"

	"fjacquet/statement-import/internal/models"
)

// StrategyResult represents the result of a categorization strategy attempt
type StrategyResult struct {
	Strategy string
	Category models.Category
	Found    bool
	Error    error
}

// StrategyResults aggregates results from multiple strategies
type StrategyResults struct {
	Results []StrategyResult
}

// GetBestResult returns the first successful result in chain order.
func (sr StrategyResults) GetBestResult() (StrategyResult, bool) {
	for _, r := range sr.Results {
		if r.Found && r.Error == nil {
			return r, true
		}
	}
	return StrategyResult{}, false
}

// GetErrors returns all errors encountered during strategy execution
func (sr StrategyResults) GetErrors() []error {
	var errs []error
	for _, result := range sr.Results {
		if result.Error != nil {
			errs = append(errs, fmt.Errorf("%s strategy: %w", result.Strategy, result.Error))
		}
	}
	return errs
}

// Summary returns a human-readable summary of all strategy attempts
func (sr StrategyResults) Summary() string {
	parts := make([]string, 0, len(sr.Results))
	for _, result := range sr.Results {
		status := "failed"
		if result.Found {
			status = "success"
		} else if result.Error == nil {
			status = "no_match"
		}
		parts = append(parts, fmt.Sprintf("%s:%s", result.Strategy, status))
	}
	return strings.Join(parts, ", ")
}
