package session

import (
	"context"

	"fjacquet/statement-import/internal/models"
)

// boardLocked returns the review board when the session accepts review edits.
func (s *Session) boardLocked(op string) error {
	if err := s.checkLocked(op, PhaseReviewing); err != nil {
		return err
	}
	if s.board == nil {
		return invalidPhase(op, s.phase)
	}
	return nil
}

// ToggleGroupSelection flips the selection of a merchant group.
func (s *Session) ToggleGroupSelection(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.boardLocked("select group"); err != nil {
		return false, err
	}
	return s.board.ToggleGroupSelection(key)
}

// ClearSelection deselects every group.
func (s *Session) ClearSelection() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.boardLocked("clear selection"); err != nil {
		return err
	}
	s.board.ClearSelection()
	return nil
}

// ApplyCategoryToGroup categorizes every member of a merchant group.
func (s *Session) ApplyCategoryToGroup(key, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.boardLocked("apply category"); err != nil {
		return err
	}
	return s.board.ApplyCategoryToGroup(key, category)
}

// ApplyCategoryToSelection categorizes the given rows, or every row of the
// selected groups when rows is empty.
func (s *Session) ApplyCategoryToSelection(rows []int, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.boardLocked("apply category"); err != nil {
		return err
	}
	if len(rows) == 0 {
		rows = s.board.SelectedRows()
	}
	return s.board.ApplyCategoryToSelection(rows, category)
}

// SetCategory categorizes one row.
func (s *Session) SetCategory(row int, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.boardLocked("set category"); err != nil {
		return err
	}
	return s.board.SetCategory(row, category)
}

// ClearCategory removes the category of one row.
func (s *Session) ClearCategory(row int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.boardLocked("clear category"); err != nil {
		return err
	}
	return s.board.ClearCategory(row)
}

// IsGroupFullyCategorized reports whether every member of the group has a
// category. Unknown groups and sessions without a review report false.
func (s *Session) IsGroupFullyCategorized(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.board == nil {
		return false
	}
	return s.board.IsGroupFullyCategorized(key)
}

// NextUncategorized returns the first row still lacking a category in group
// display order.
func (s *Session) NextUncategorized() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.board == nil {
		return 0, false
	}
	return s.board.NextUncategorized()
}

// FinishReview leaves review once every row has a category and runs the
// duplicate check. Without duplicates the import is saved.
func (s *Session) FinishReview(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.boardLocked("finish review"); err != nil {
		return err
	}
	if !s.board.IsComplete() {
		return ErrReviewIncomplete
	}
	return s.checkAndSaveLocked(ctx)
}

// ReturnToReview leaves the duplicate warning and reopens the review with
// the categories chosen so far.
func (s *Session) ReturnToReview() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked("return to review", PhaseDuplicateCheck); err != nil {
		return err
	}
	if s.board == nil || len(s.needsReview) == 0 {
		return invalidPhase("return to review (nothing to review)", s.phase)
	}
	s.duplicates = nil
	s.selectedDuplicates = nil
	s.transitionLocked(PhaseReviewing)
	return nil
}

// Groups returns the merchant groups awaiting review.
func (s *Session) Groups() []models.MerchantGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.board == nil {
		return nil
	}
	return s.board.Groups()
}
