package models

import "strings"

// Category represents a transaction category
type Category struct {
	Name        string
	Description string
}

// CategoryKind restricts a category to one transaction direction.
type CategoryKind string

const (
	CategoryKindExpense CategoryKind = "expense"
	CategoryKindIncome  CategoryKind = "income"
	CategoryKindAny     CategoryKind = "any"
)

// Allows reports whether a transaction of kind k may carry the category.
// An empty kind behaves like CategoryKindAny.
func (c CategoryKind) Allows(k Kind) bool {
	switch c {
	case CategoryKindExpense:
		return k == KindExpense
	case CategoryKindIncome:
		return k == KindIncome
	}
	return true
}

// CategoryConfig represents a category configuration in the YAML file
type CategoryConfig struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Kind        CategoryKind `yaml:"kind,omitempty"`
	Keywords    []string     `yaml:"keywords,omitempty"`
}

// CategoriesConfig represents the structure of the categories YAML file
type CategoriesConfig struct {
	Categories []CategoryConfig `yaml:"categories"`
}

// Taxonomy is the loaded list of categories with case-insensitive lookup.
type Taxonomy struct {
	categories []CategoryConfig
	byName     map[string]int
}

// NewTaxonomy indexes categories by lower-cased name. Later duplicates are ignored.
func NewTaxonomy(categories []CategoryConfig) *Taxonomy {
	t := &Taxonomy{byName: make(map[string]int, len(categories))}
	for _, c := range categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, exists := t.byName[key]; exists {
			continue
		}
		c.Name = name
		t.byName[key] = len(t.categories)
		t.categories = append(t.categories, c)
	}
	return t
}

// Lookup resolves name to its canonical category.
func (t *Taxonomy) Lookup(name string) (CategoryConfig, bool) {
	if t == nil {
		return CategoryConfig{}, false
	}
	i, ok := t.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return CategoryConfig{}, false
	}
	return t.categories[i], true
}

// Names lists the categories allowed for kind, in file order.
func (t *Taxonomy) Names(kind Kind) []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.categories))
	for _, c := range t.categories {
		if c.Kind.Allows(kind) {
			names = append(names, c.Name)
		}
	}
	return names
}

// Categories returns a copy of the configured categories.
func (t *Taxonomy) Categories() []CategoryConfig {
	if t == nil {
		return nil
	}
	return append([]CategoryConfig(nil), t.categories...)
}

// Len returns the number of categories.
func (t *Taxonomy) Len() int {
	if t == nil {
		return 0
	}
	return len(t.categories)
}
