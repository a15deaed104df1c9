package categorizer

import (
	"context"
	"fmt"

	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"
)

// CacheStrategy implements categorization using exact merchant key matches
// from the expense and income merchant caches.
type CacheStrategy struct {
	store    MerchantStore
	taxonomy *models.Taxonomy
	logger   logging.Logger
}

// NewCacheStrategy creates a new CacheStrategy. When taxonomy knows the cached
// category its canonical spelling is returned.
func NewCacheStrategy(store MerchantStore, taxonomy *models.Taxonomy, logger logging.Logger) *CacheStrategy {
	return &CacheStrategy{
		store:    store,
		taxonomy: taxonomy,
		logger:   logging.OrDefault(logger),
	}
}

// Name returns the name of this strategy for logging and debugging.
func (s *CacheStrategy) Name() string {
	return "MerchantCache"
}

// Categorize looks the transaction's merchant key up in the cache for its kind.
func (s *CacheStrategy) Categorize(ctx context.Context, tx models.ParsedTransaction) (models.Category, bool, error) {
	key := tx.MerchantKey()
	if key == "" {
		return models.Category{}, false, nil
	}

	name, found, err := s.store.Lookup(key, tx.Kind)
	if err != nil {
		return models.Category{}, false, fmt.Errorf("merchant cache lookup: %w", err)
	}
	if !found {
		return models.Category{}, false, nil
	}

	category := models.Category{Name: name}
	if known, ok := s.taxonomy.Lookup(name); ok {
		category = models.Category{Name: known.Name, Description: known.Description}
	}

	s.logger.WithFields(
		logging.Field{Key: logging.FieldStrategy, Value: s.Name()},
		logging.Field{Key: logging.FieldRow, Value: tx.RowNumber},
		logging.Field{Key: logging.FieldMerchant, Value: key},
		logging.Field{Key: logging.FieldCategory, Value: category.Name},
	).Debug("Transaction categorized using merchant cache")

	return category, true, nil
}
