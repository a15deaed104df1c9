// Package review groups the transactions awaiting a manual category by
// merchant and tracks the categories a person assigns to them.
package review

import (
	"sort"

	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/textutils"
)

// Group partitions needsReview by merchant key. Members are ordered by row
// number; groups by descending size, then by their smallest row number, so
// the result does not depend on the input order.
func Group(needsReview []models.ParsedTransaction) []models.MerchantGroup {
	sorted := append([]models.ParsedTransaction(nil), needsReview...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RowNumber < sorted[j].RowNumber })

	index := make(map[string]int)
	var groups []models.MerchantGroup
	for _, tx := range sorted {
		key := tx.MerchantKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, models.MerchantGroup{
				NormalizedKey: key,
				DisplayName:   textutils.DisplayName(tx.MerchantName),
			})
		}
		groups[i].Members = append(groups[i].Members, tx)
	}

	for i := range groups {
		groups[i].DominantKind = dominantKind(groups[i].Members)
	}

	// Groups were created in ascending first-row order, so a stable sort by
	// size keeps that order for ties.
	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i].Members) > len(groups[j].Members)
	})
	return groups
}

// dominantKind is the majority kind; a tie goes to the first member's kind.
func dominantKind(members []models.ParsedTransaction) models.Kind {
	if len(members) == 0 {
		return ""
	}
	counts := make(map[models.Kind]int, 2)
	for _, m := range members {
		counts[m.Kind]++
	}
	best := members[0].Kind
	for kind, n := range counts {
		if n > counts[best] {
			best = kind
		}
	}
	return best
}

// NextUncategorized returns the first review row without a category, walking
// the groups in display order.
func NextUncategorized(needsReview []models.ParsedTransaction, reviewCategories map[int]string) (int, bool) {
	for _, g := range Group(needsReview) {
		for _, m := range g.Members {
			if !hasCategory(reviewCategories, m.RowNumber) {
				return m.RowNumber, true
			}
		}
	}
	return 0, false
}

func hasCategory(categories map[int]string, row int) bool {
	c, ok := categories[row]
	return ok && c != ""
}
