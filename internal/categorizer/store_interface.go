package categorizer

import "fjacquet/statement-import/internal/models"

// MerchantStore is the taxonomy and merchant cache the classifier depends on.
// store.MerchantStore and store.MockMerchantStore implement it.
type MerchantStore interface {
	LoadCategories() ([]models.CategoryConfig, error)
	Lookup(key string, kind models.Kind) (string, bool, error)
	Remember(key string, kind models.Kind, category string) error
}
