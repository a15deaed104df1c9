package session

import (
	"context"

	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/parsererror"
)

func (s *Session) awaitingDuplicatesLocked(op string) error {
	if err := s.checkLocked(op, PhaseDuplicateCheck); err != nil {
		return err
	}
	if len(s.duplicates) == 0 {
		return invalidPhase(op+" (no duplicates)", s.phase)
	}
	return nil
}

func (s *Session) isDuplicateLocked(row int) bool {
	for _, d := range s.duplicates {
		if d.Incoming.RowNumber == row {
			return true
		}
	}
	return false
}

// ToggleDuplicate flips whether a flagged row is imported anyway and
// returns the new state. Every flagged row starts selected.
func (s *Session) ToggleDuplicate(row int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.awaitingDuplicatesLocked("toggle duplicate"); err != nil {
		return false, err
	}
	if !s.isDuplicateLocked(row) {
		return false, parsererror.NewValidationError("row", "row %d is not a possible duplicate", row)
	}
	s.selectedDuplicates[row] = !s.selectedDuplicates[row]
	return s.selectedDuplicates[row], nil
}

// SetDuplicateSelection replaces the set of flagged rows to import.
func (s *Session) SetDuplicateSelection(rows []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.awaitingDuplicatesLocked("select duplicates"); err != nil {
		return err
	}
	for _, row := range rows {
		if !s.isDuplicateLocked(row) {
			return parsererror.NewValidationError("row", "row %d is not a possible duplicate", row)
		}
	}
	selected := make(map[int]bool, len(s.duplicates))
	for _, row := range rows {
		selected[row] = true
	}
	s.selectedDuplicates = selected
	return nil
}

// ConfirmDuplicates saves every non-flagged candidate plus the flagged rows
// still selected, skipping the duplicate check.
func (s *Session) ConfirmDuplicates(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.awaitingDuplicatesLocked("confirm duplicates"); err != nil {
		return err
	}

	var set []models.Candidate
	for _, c := range s.candidatesLocked() {
		row := c.Transaction.RowNumber
		if s.isDuplicateLocked(row) && !s.selectedDuplicates[row] {
			continue
		}
		set = append(set, c)
	}
	if len(set) == 0 {
		return parsererror.NewValidationError("duplicates", "nothing left to import")
	}

	s.transitionLocked(PhaseSaving)
	c := s.startLocked(ctx)
	s.mu.Unlock()
	out, err := s.backend.CheckAndSave(c.ctx, s.id, set, true)
	s.mu.Lock()
	if serr := s.endLocked(c); serr != nil {
		return serr
	}
	if err != nil {
		return s.failLocked("saving", err)
	}
	s.completeLocked(out)
	return nil
}
