package session

import (
	"errors"
	"fmt"

	"fjacquet/statement-import/internal/parsererror"
)

// Phase is the state of an import session.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseTypeSelected    Phase = "type_selected"
	PhaseFormatDetecting Phase = "format_detecting"
	PhaseFormatConfirmed Phase = "format_confirmed"
	PhaseParsing         Phase = "parsing"
	PhaseClassifying     Phase = "classifying"
	PhaseReviewing       Phase = "reviewing"
	PhaseDuplicateCheck  Phase = "duplicate_check"
	PhaseSaving          Phase = "saving"
	PhaseDone            Phase = "done"
	PhaseError           Phase = "error"
)

// Terminal reports whether only Reset can leave the phase.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseError
}

var (
	// ErrStale is returned when a backend result arrives after the session
	// was reset or moved on. The result is discarded.
	ErrStale = errors.New("session changed while the operation was running; result discarded")

	// ErrReviewIncomplete refuses to leave review while a transaction lacks
	// a category.
	ErrReviewIncomplete = &parsererror.ValidationError{Field: "review", Reason: "every transaction needs a category"}

	// ErrInvalidPhase refuses an operation the current phase does not allow.
	ErrInvalidPhase = &parsererror.ValidationError{Field: "phase", Reason: "operation not allowed now"}
)

func invalidPhase(op string, phase Phase) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidPhase, op, phase)
}
