// Package store provides the YAML-backed category taxonomy and merchant cache.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/textutils"

	"gopkg.in/yaml.v3"
)

// Default file names, resolved through FindConfigFile.
const (
	DefaultCategoriesFile = "categories.yaml"
	DefaultExpensesFile   = "expenses.yaml"
	DefaultIncomeFile     = "income.yaml"
)

// defaultSaveDir receives mapping files that do not exist yet.
const defaultSaveDir = "database"

// MerchantStore manages the category taxonomy and the merchant → category
// cache. Expense and income merchants live in separate files because the same
// merchant key can map to different categories per direction.
type MerchantStore struct {
	CategoriesFile string
	ExpensesFile   string
	IncomeFile     string

	logger logging.Logger

	mu    sync.RWMutex
	cache map[models.Kind]map[string]string
}

// NewMerchantStore creates a store over the given files. Empty names select
// the defaults.
func NewMerchantStore(categoriesFile, expensesFile, incomeFile string, logger logging.Logger) *MerchantStore {
	if categoriesFile == "" {
		categoriesFile = DefaultCategoriesFile
	}
	if expensesFile == "" {
		expensesFile = DefaultExpensesFile
	}
	if incomeFile == "" {
		incomeFile = DefaultIncomeFile
	}
	return &MerchantStore{
		CategoriesFile: categoriesFile,
		ExpensesFile:   expensesFile,
		IncomeFile:     incomeFile,
		logger:         logging.OrDefault(logger).WithField(logging.FieldComponent, "store"),
		cache:          make(map[models.Kind]map[string]string),
	}
}

// FindConfigFile looks for a configuration file in standard locations
func (s *MerchantStore) FindConfigFile(filename string) (string, error) {
	if filepath.IsAbs(filename) {
		if _, err := os.Stat(filename); err == nil {
			return filename, nil
		}
		return "", os.ErrNotExist
	}

	locations := []string{
		filename,
		filepath.Join("config", filename),
		filepath.Join(defaultSaveDir, filename),
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location, nil
		}
	}

	// Fall back to ~/.config/statement-import/
	if homeDir, err := os.UserHomeDir(); err == nil {
		configPath := filepath.Join(homeDir, ".config", "statement-import", filename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
	}

	return "", os.ErrNotExist
}

// LoadCategories loads the taxonomy. A missing file yields an empty list.
func (s *MerchantStore) LoadCategories() ([]models.CategoryConfig, error) {
	filePath, err := s.FindConfigFile(s.CategoriesFile)
	if err != nil {
		s.logger.Warn("Categories file not found", logging.Field{Key: logging.FieldFile, Value: s.CategoriesFile})
		return []models.CategoryConfig{}, nil
	}

	data, err := os.ReadFile(filePath) // #nosec G304 -- path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("error reading categories file: %w", err)
	}

	// Preferred layout: "categories: [...]"
	var categoriesConfig models.CategoriesConfig
	if err := yaml.Unmarshal(data, &categoriesConfig); err == nil && len(categoriesConfig.Categories) > 0 {
		s.logCategories(len(categoriesConfig.Categories), filePath)
		return categoriesConfig.Categories, nil
	}

	// Bare list without the top-level key.
	var categories []models.CategoryConfig
	if err := yaml.Unmarshal(data, &categories); err == nil && len(categories) > 0 {
		s.logCategories(len(categories), filePath)
		return categories, nil
	}

	return s.parseCategoryMap(data)
}

func (s *MerchantStore) logCategories(n int, path string) {
	s.logger.Debug("Loaded categories",
		logging.Field{Key: logging.FieldCount, Value: n},
		logging.Field{Key: logging.FieldFile, Value: path})
}

// parseCategoryMap accepts the short form "Name: description" or
// "Name: {keywords: [...], kind: expense}".
func (s *MerchantStore) parseCategoryMap(data []byte) ([]models.CategoryConfig, error) {
	var categoriesMap map[string]interface{}
	if err := yaml.Unmarshal(data, &categoriesMap); err != nil {
		return nil, fmt.Errorf("error parsing categories file: %w", err)
	}

	categories := make([]models.CategoryConfig, 0, len(categoriesMap))
	for name, value := range categoriesMap {
		category := models.CategoryConfig{Name: name}
		switch v := value.(type) {
		case string:
			category.Description = v
		case map[string]interface{}:
			if desc, ok := v["description"].(string); ok {
				category.Description = desc
			}
			if kind, ok := v["kind"].(string); ok {
				category.Kind = models.CategoryKind(strings.ToLower(kind))
			}
			if keywordsList, ok := v["keywords"].([]interface{}); ok {
				for _, k := range keywordsList {
					if keyword, ok := k.(string); ok {
						category.Keywords = append(category.Keywords, strings.ToLower(keyword))
					}
				}
			}
		}
		categories = append(categories, category)
	}

	// Map iteration order is random; keep the taxonomy stable.
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	s.logger.Debug("Parsed categories from map format", logging.Field{Key: logging.FieldCount, Value: len(categories)})
	return categories, nil
}

func (s *MerchantStore) fileFor(kind models.Kind) (string, error) {
	switch kind {
	case models.KindExpense:
		return s.ExpensesFile, nil
	case models.KindIncome:
		return s.IncomeFile, nil
	}
	return "", fmt.Errorf("unknown transaction kind %q", kind)
}

// LoadMappings reads the merchant key → category file for kind. A missing file
// yields an empty map. Keys are re-folded so hand-edited files match.
func (s *MerchantStore) LoadMappings(kind models.Kind) (map[string]string, error) {
	filename, err := s.fileFor(kind)
	if err != nil {
		return nil, err
	}

	filePath, err := s.FindConfigFile(filename)
	if err != nil {
		s.logger.Debug("Merchant mappings file not found", logging.Field{Key: logging.FieldFile, Value: filename})
		return map[string]string{}, nil
	}

	data, err := os.ReadFile(filePath) // #nosec G304 -- path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("error reading %s mappings: %w", kind, err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error parsing %s mappings: %w", kind, err)
	}

	mappings := make(map[string]string, len(raw))
	for name, category := range raw {
		key := textutils.MerchantKey(name)
		category = strings.TrimSpace(category)
		if key == "" || category == "" {
			continue
		}
		mappings[key] = category
	}

	s.logger.Debug("Loaded merchant mappings",
		logging.Field{Key: logging.FieldCount, Value: len(mappings)},
		logging.Field{Key: logging.FieldFile, Value: filePath})
	return mappings, nil
}

// SaveMappings writes the mapping file for kind, creating it under the
// database directory when it does not exist yet.
func (s *MerchantStore) SaveMappings(kind models.Kind, mappings map[string]string) error {
	filename, err := s.fileFor(kind)
	if err != nil {
		return err
	}

	filePath, err := s.FindConfigFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		filePath = filename
		if !filepath.IsAbs(filename) {
			filePath = filepath.Join(defaultSaveDir, filename)
		}
	}

	if err := os.MkdirAll(filepath.Dir(filePath), models.PermissionDirectory); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}

	data, err := yaml.Marshal(mappings)
	if err != nil {
		return fmt.Errorf("error marshaling %s mappings: %w", kind, err)
	}

	if err := os.WriteFile(filePath, data, models.PermissionConfigFile); err != nil {
		return fmt.Errorf("error writing %s mappings: %w", kind, err)
	}

	s.logger.Debug("Saved merchant mappings",
		logging.Field{Key: logging.FieldCount, Value: len(mappings)},
		logging.Field{Key: logging.FieldFile, Value: filePath})
	return nil
}

// mappingsLocked returns the cached map for kind, loading it on first use.
// Callers hold s.mu for writing.
func (s *MerchantStore) mappingsLocked(kind models.Kind) (map[string]string, error) {
	if m, ok := s.cache[kind]; ok {
		return m, nil
	}
	m, err := s.LoadMappings(kind)
	if err != nil {
		return nil, err
	}
	s.cache[kind] = m
	return m, nil
}

// Lookup returns the remembered category for a merchant key and kind.
func (s *MerchantStore) Lookup(key string, kind models.Kind) (string, bool, error) {
	key = textutils.MerchantKey(key)
	if key == "" {
		return "", false, nil
	}

	s.mu.RLock()
	if m, ok := s.cache[kind]; ok {
		category, found := m[key]
		s.mu.RUnlock()
		return category, found, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.mappingsLocked(kind)
	if err != nil {
		return "", false, err
	}
	category, found := m[key]
	return category, found, nil
}

// Remember stores category for a merchant key and kind and persists the file.
// Re-remembering the same category is a no-op.
func (s *MerchantStore) Remember(key string, kind models.Kind, category string) error {
	key = textutils.MerchantKey(key)
	category = strings.TrimSpace(category)
	if key == "" || category == "" {
		return fmt.Errorf("merchant key and category are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.mappingsLocked(kind)
	if err != nil {
		return err
	}
	if m[key] == category {
		return nil
	}

	updated := make(map[string]string, len(m)+1)
	for k, v := range m {
		updated[k] = v
	}
	updated[key] = category

	if err := s.SaveMappings(kind, updated); err != nil {
		return err
	}
	s.cache[kind] = updated

	s.logger.Info("Remembered merchant category",
		logging.Field{Key: logging.FieldMerchant, Value: key},
		logging.Field{Key: logging.FieldCategory, Value: category})
	return nil
}

// Reload drops the in-memory cache so the next Lookup re-reads the files.
func (s *MerchantStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[models.Kind]map[string]string)
	s.mu.Unlock()
}
