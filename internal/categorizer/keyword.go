package categorizer

import (
	"context"
	"strings"
	"sync"

	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/textutils"
)

// keywordRule is one folded keyword pointing at its category.
type keywordRule struct {
	keyword  string
	category models.CategoryConfig
}

// KeywordStrategy implements categorization using the keyword lists of the
// category taxonomy. Rules are tried in file order; a category only matches
// transactions of the kind it allows.
type KeywordStrategy struct {
	mu     sync.RWMutex
	rules  []keywordRule
	logger logging.Logger
}

// NewKeywordStrategy creates a new KeywordStrategy over taxonomy.
func NewKeywordStrategy(taxonomy *models.Taxonomy, logger logging.Logger) *KeywordStrategy {
	s := &KeywordStrategy{logger: logging.OrDefault(logger)}
	s.ReloadCategories(taxonomy.Categories())
	return s
}

// Name returns the name of this strategy for logging and debugging.
func (s *KeywordStrategy) Name() string {
	return "Keyword"
}

// ReloadCategories rebuilds the rule table.
func (s *KeywordStrategy) ReloadCategories(categories []models.CategoryConfig) {
	rules := make([]keywordRule, 0, len(categories))
	for _, c := range categories {
		for _, k := range c.Keywords {
			folded := textutils.MerchantKey(k)
			if folded == "" {
				continue
			}
			rules = append(rules, keywordRule{keyword: folded, category: c})
		}
	}

	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()

	s.logger.Debug("Keyword rules loaded", logging.Field{Key: logging.FieldCount, Value: len(rules)})
}

// Categorize matches the folded merchant name against every keyword.
func (s *KeywordStrategy) Categorize(ctx context.Context, tx models.ParsedTransaction) (models.Category, bool, error) {
	key := tx.MerchantKey()
	if key == "" {
		return models.Category{}, false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rule := range s.rules {
		if !rule.category.Kind.Allows(tx.Kind) || !strings.Contains(key, rule.keyword) {
			continue
		}

		s.logger.WithFields(
			logging.Field{Key: logging.FieldStrategy, Value: s.Name()},
			logging.Field{Key: logging.FieldRow, Value: tx.RowNumber},
			logging.Field{Key: "keyword", Value: rule.keyword},
			logging.Field{Key: logging.FieldCategory, Value: rule.category.Name},
		).Debug("Transaction categorized using keyword matching")

		return models.Category{Name: rule.category.Name, Description: rule.category.Description}, true, nil
	}

	return models.Category{}, false, nil
}
