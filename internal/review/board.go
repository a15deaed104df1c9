package review

import (
	"sort"
	"strings"

	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/parsererror"
)

// Board is the review state of one import: the transactions awaiting a
// category, their merchant groups, the group selection and the categories
// assigned so far. Every write is validated first and applied whole.
// A Board is not safe for concurrent use; the session serializes access.
type Board struct {
	needsReview []models.ParsedTransaction
	rows        map[int]int
	groups      []models.MerchantGroup
	groupIndex  map[string]int
	categories  map[int]string
	selected    map[string]bool
}

// NewBoard builds a board. Entries of categories for rows outside needsReview
// are rejected.
func NewBoard(needsReview []models.ParsedTransaction, categories map[int]string) (*Board, error) {
	b := &Board{
		needsReview: append([]models.ParsedTransaction(nil), needsReview...),
		rows:        make(map[int]int, len(needsReview)),
		categories:  make(map[int]string, len(needsReview)),
		selected:    make(map[string]bool),
	}
	sort.SliceStable(b.needsReview, func(i, j int) bool { return b.needsReview[i].RowNumber < b.needsReview[j].RowNumber })

	for i, tx := range b.needsReview {
		if _, dup := b.rows[tx.RowNumber]; dup {
			return nil, parsererror.NewValidationError("needsReview", "row %d appears twice", tx.RowNumber)
		}
		b.rows[tx.RowNumber] = i
	}
	for row, category := range categories {
		if _, ok := b.rows[row]; !ok {
			return nil, parsererror.NewValidationError("row", "row %d is not awaiting review", row)
		}
		if c := strings.TrimSpace(category); c != "" {
			b.categories[row] = c
		}
	}

	b.groups = Group(b.needsReview)
	b.groupIndex = make(map[string]int, len(b.groups))
	for i, g := range b.groups {
		b.groupIndex[g.NormalizedKey] = i
	}
	return b, nil
}

// Groups returns a copy of the merchant groups in display order.
func (b *Board) Groups() []models.MerchantGroup {
	out := make([]models.MerchantGroup, len(b.groups))
	for i, g := range b.groups {
		g.Members = append([]models.ParsedTransaction(nil), g.Members...)
		out[i] = g
	}
	return out
}

func (b *Board) group(key string) (models.MerchantGroup, error) {
	i, ok := b.groupIndex[key]
	if !ok {
		return models.MerchantGroup{}, parsererror.NewValidationError("group", "unknown merchant group %q", key)
	}
	return b.groups[i], nil
}

// ToggleGroupSelection flips the selection of a group and returns whether it
// is now selected.
func (b *Board) ToggleGroupSelection(key string) (bool, error) {
	if _, err := b.group(key); err != nil {
		return false, err
	}
	if b.selected[key] {
		delete(b.selected, key)
		return false, nil
	}
	b.selected[key] = true
	return true, nil
}

// ClearSelection deselects every group.
func (b *Board) ClearSelection() {
	b.selected = make(map[string]bool)
}

// SelectedGroups lists the selected group keys in display order.
func (b *Board) SelectedGroups() []string {
	var keys []string
	for _, g := range b.groups {
		if b.selected[g.NormalizedKey] {
			keys = append(keys, g.NormalizedKey)
		}
	}
	return keys
}

// SelectedRows lists the member rows of the selected groups, ascending.
func (b *Board) SelectedRows() []int {
	var rows []int
	for _, g := range b.groups {
		if b.selected[g.NormalizedKey] {
			rows = append(rows, g.Rows()...)
		}
	}
	sort.Ints(rows)
	return rows
}

func normalizeCategory(category string) (string, error) {
	c := strings.TrimSpace(category)
	if c == "" {
		return "", parsererror.NewValidationError("category", "category must not be empty")
	}
	return c, nil
}

// ApplyCategoryToGroup assigns category to every member of the group.
func (b *Board) ApplyCategoryToGroup(key, category string) error {
	c, err := normalizeCategory(category)
	if err != nil {
		return err
	}
	g, err := b.group(key)
	if err != nil {
		return err
	}
	for _, m := range g.Members {
		b.categories[m.RowNumber] = c
	}
	return nil
}

// ApplyCategoryToSelection assigns category to every listed row, across
// groups. Nothing is written unless every row awaits review.
func (b *Board) ApplyCategoryToSelection(rows []int, category string) error {
	c, err := normalizeCategory(category)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return parsererror.NewValidationError("rows", "no rows selected")
	}
	for _, row := range rows {
		if _, ok := b.rows[row]; !ok {
			return parsererror.NewValidationError("row", "row %d is not awaiting review", row)
		}
	}
	for _, row := range rows {
		b.categories[row] = c
	}
	return nil
}

// SetCategory assigns category to one row.
func (b *Board) SetCategory(row int, category string) error {
	return b.ApplyCategoryToSelection([]int{row}, category)
}

// ClearCategory removes the category of one row.
func (b *Board) ClearCategory(row int) error {
	if _, ok := b.rows[row]; !ok {
		return parsererror.NewValidationError("row", "row %d is not awaiting review", row)
	}
	delete(b.categories, row)
	return nil
}

// Category returns the category assigned to row.
func (b *Board) Category(row int) (string, bool) {
	c, ok := b.categories[row]
	return c, ok
}

// Categories returns a copy of the assigned categories by row.
func (b *Board) Categories() map[int]string {
	out := make(map[int]string, len(b.categories))
	for row, c := range b.categories {
		out[row] = c
	}
	return out
}

// IsGroupFullyCategorized reports whether every member of the group has a
// category. Unknown groups report false.
func (b *Board) IsGroupFullyCategorized(key string) bool {
	done, total := b.GroupProgress(key)
	return total > 0 && done == total
}

// GroupProgress counts the categorized members of a group.
func (b *Board) GroupProgress(key string) (done, total int) {
	g, err := b.group(key)
	if err != nil {
		return 0, 0
	}
	for _, m := range g.Members {
		if hasCategory(b.categories, m.RowNumber) {
			done++
		}
	}
	return done, len(g.Members)
}

// Progress counts the categorized review rows.
func (b *Board) Progress() (done, total int) {
	for _, tx := range b.needsReview {
		if hasCategory(b.categories, tx.RowNumber) {
			done++
		}
	}
	return done, len(b.needsReview)
}

// IsComplete reports whether every review row has a category.
func (b *Board) IsComplete() bool {
	done, total := b.Progress()
	return done == total
}

// Uncategorized lists the review rows still lacking a category, ascending.
func (b *Board) Uncategorized() []int {
	var rows []int
	for _, tx := range b.needsReview {
		if !hasCategory(b.categories, tx.RowNumber) {
			rows = append(rows, tx.RowNumber)
		}
	}
	return rows
}

// NextUncategorized returns the first uncategorized row in display order.
func (b *Board) NextUncategorized() (int, bool) {
	return NextUncategorized(b.needsReview, b.categories)
}

// Reviewed returns the review transactions with their assigned categories,
// in row order. Rows without a category keep an empty one.
func (b *Board) Reviewed() []models.ParsedTransaction {
	out := make([]models.ParsedTransaction, len(b.needsReview))
	for i, tx := range b.needsReview {
		out[i] = tx.WithCategory(b.categories[tx.RowNumber])
	}
	return out
}
