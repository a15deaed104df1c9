package store

import (
	"sync"

	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/textutils"
)

// MockMerchantStore is an in-memory MerchantStore for testing.
type MockMerchantStore struct {
	Categories      []models.CategoryConfig
	ExpenseMappings map[string]string
	IncomeMappings  map[string]string

	// Error flags for testing error conditions
	LoadCategoriesError error
	LookupError         error
	RememberError       error

	mu         sync.Mutex
	Remembered []RememberCall
}

// RememberCall records one Remember invocation.
type RememberCall struct {
	Key      string
	Kind     models.Kind
	Category string
}

// LoadCategories returns the mock categories.
func (m *MockMerchantStore) LoadCategories() ([]models.CategoryConfig, error) {
	if m.LoadCategoriesError != nil {
		return nil, m.LoadCategoriesError
	}
	return m.Categories, nil
}

func (m *MockMerchantStore) mappings(kind models.Kind) map[string]string {
	if kind == models.KindIncome {
		if m.IncomeMappings == nil {
			m.IncomeMappings = make(map[string]string)
		}
		return m.IncomeMappings
	}
	if m.ExpenseMappings == nil {
		m.ExpenseMappings = make(map[string]string)
	}
	return m.ExpenseMappings
}

// Lookup returns the mapped category. Keys in the mock maps are folded on
// lookup so tests may write them in any case.
func (m *MockMerchantStore) Lookup(key string, kind models.Kind) (string, bool, error) {
	if m.LookupError != nil {
		return "", false, m.LookupError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key = textutils.MerchantKey(key)
	for k, v := range m.mappings(kind) {
		if textutils.MerchantKey(k) == key {
			return v, true, nil
		}
	}
	return "", false, nil
}

// Remember updates the mock mappings and records the call.
func (m *MockMerchantStore) Remember(key string, kind models.Kind, category string) error {
	if m.RememberError != nil {
		return m.RememberError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key = textutils.MerchantKey(key)
	m.mappings(kind)[key] = category
	m.Remembered = append(m.Remembered, RememberCall{Key: key, Kind: kind, Category: category})
	return nil
}

// RememberCalls returns a copy of the recorded Remember calls.
func (m *MockMerchantStore) RememberCalls() []RememberCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RememberCall(nil), m.Remembered...)
}
