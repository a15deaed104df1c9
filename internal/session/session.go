// Package session drives one statement import from type selection to the
// final save. A Session is a state machine guarded by a mutex: every
// transition validates its phase first, backend calls run without the lock,
// and results of calls that were overtaken by Reset are discarded.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fjacquet/statement-import/internal/importer"
	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/parsererror"
	"fjacquet/statement-import/internal/review"
	"fjacquet/statement-import/internal/statement"

	"github.com/google/uuid"
)

// Options configures a session.
type Options struct {
	Logger logging.Logger
}

// Session is one import of one statement file.
type Session struct {
	id      string
	file    statement.File
	backend importer.Backend
	logger  logging.Logger

	mu         sync.Mutex
	phase      Phase
	history    []Phase
	generation uint64
	busy       bool
	cancel     context.CancelFunc

	importType  models.ImportType
	dateFormat  models.DateFormat
	excelSerial bool
	detection   *models.DateFormatDetection

	parsed      []models.ParsedTransaction
	needsReview []models.ParsedTransaction
	board       *review.Board
	stats       models.ClassificationStats
	rowErrors   []models.RowError

	duplicates         []models.DuplicateCandidate
	selectedDuplicates map[int]bool

	saved   int
	records []models.CommitRecord
	errors  []string
}

// New creates an idle session for file. An empty id gets a random one.
func New(id string, file statement.File, backend importer.Backend, opts Options) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	return &Session{
		id:      id,
		file:    file,
		backend: backend,
		logger: logging.OrDefault(opts.Logger).WithFields(
			logging.Field{Key: logging.FieldComponent, Value: "session"},
			logging.Field{Key: logging.FieldSession, Value: id},
		),
		phase:   PhaseIdle,
		history: []Phase{PhaseIdle},
	}
}

// ID returns the session identifier used as the idempotency reference of
// the save.
func (s *Session) ID() string {
	return s.id
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Reset cancels any running operation, discards all import state and
// returns to Idle. It is allowed from every phase.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	from := s.phase

	s.phase = PhaseIdle
	s.history = []Phase{PhaseIdle}
	s.busy = false
	s.importType = ""
	s.dateFormat = ""
	s.excelSerial = false
	s.detection = nil
	s.parsed = nil
	s.needsReview = nil
	s.board = nil
	s.stats = models.ClassificationStats{}
	s.rowErrors = nil
	s.duplicates = nil
	s.selectedDuplicates = nil
	s.saved = 0
	s.records = nil
	s.errors = nil

	s.logger.Info("Session reset", logging.Field{Key: logging.FieldFromPhase, Value: from})
}

func (s *Session) transitionLocked(to Phase) {
	from := s.phase
	s.phase = to
	s.history = append(s.history, to)
	s.logger.Debug("Session phase changed",
		logging.Field{Key: logging.FieldFromPhase, Value: from},
		logging.Field{Key: logging.FieldPhase, Value: to})
}

// call is one backend call in flight.
type call struct {
	ctx        context.Context
	generation uint64
}

// startLocked marks the session busy and derives a cancellable context for
// the next backend call.
func (s *Session) startLocked(parent context.Context) call {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.busy = true
	return call{ctx: ctx, generation: s.generation}
}

// endLocked releases the call and reports ErrStale when the session was
// reset or overridden while it ran.
func (s *Session) endLocked(c call) error {
	if c.generation != s.generation {
		s.logger.Debug("Discarding stale result")
		return ErrStale
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.busy = false
	return nil
}

// failLocked moves the session to Error and surfaces err.
func (s *Session) failLocked(op string, err error) error {
	s.logger.WithError(err).Error("Import failed", logging.Field{Key: logging.FieldPhase, Value: s.phase})
	s.transitionLocked(PhaseError)
	s.errors = append(s.errors, fmt.Sprintf("%s: %v", op, err))
	return err
}

// checkLocked refuses op unless the session is idle in one of phases.
func (s *Session) checkLocked(op string, phases ...Phase) error {
	if s.busy {
		return invalidPhase(op+" (operation running)", s.phase)
	}
	for _, p := range phases {
		if s.phase == p {
			return nil
		}
	}
	return invalidPhase(op, s.phase)
}

// SelectType starts the import. A concrete dateChoice skips detection; AUTO
// (or empty) detects the format and continues unless the detection is too
// weak, in which case the session waits in FormatDetecting for
// ConfirmFormat. The call returns once the session reaches a phase that
// needs input or a terminal phase.
func (s *Session) SelectType(ctx context.Context, importType models.ImportType, dateChoice models.DateFormat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked("select type", PhaseIdle); err != nil {
		return err
	}
	switch importType {
	case models.ImportTypeExpenses, models.ImportTypeRoundTrip:
	case "":
		return parsererror.NewValidationError("importType", "an import type is required")
	default:
		return parsererror.NewValidationError("importType", "unknown import type %q", importType)
	}
	if dateChoice == "" {
		dateChoice = models.DateFormatAuto
	}
	if dateChoice != models.DateFormatAuto && !dateChoice.IsConcrete() {
		return parsererror.NewValidationError("dateFormat", "unknown date format %q", dateChoice)
	}

	s.importType = importType
	s.logger.Info("Import type selected", logging.Field{Key: logging.FieldImportType, Value: importType})
	s.transitionLocked(PhaseTypeSelected)
	s.transitionLocked(PhaseFormatDetecting)

	if dateChoice.IsConcrete() {
		s.dateFormat = dateChoice
		s.transitionLocked(PhaseFormatConfirmed)
		return s.parseAndClassifyLocked(ctx)
	}
	return s.detectLocked(ctx)
}

func (s *Session) detectLocked(parent context.Context) error {
	c := s.startLocked(parent)
	s.mu.Unlock()
	detection, err := s.backend.DetectDateFormat(c.ctx, s.file)
	s.mu.Lock()
	if serr := s.endLocked(c); serr != nil {
		return serr
	}
	if err != nil {
		return s.failLocked("date format detection", err)
	}

	s.detection = &detection
	s.logger.Info("Date format detected",
		logging.Field{Key: logging.FieldDateFormat, Value: detection.Format},
		logging.Field{Key: logging.FieldConfidence, Value: detection.Confidence})

	switch {
	case detection.IsExcelSerial:
		s.excelSerial = true
		s.dateFormat = models.DateFormatISO
	case detection.NeedsManualChoice():
		return nil
	default:
		s.dateFormat = detection.Format
	}
	s.transitionLocked(PhaseFormatConfirmed)
	return s.parseAndClassifyLocked(parent)
}

// ConfirmFormat sets the date format by hand while the session is in
// FormatDetecting. A detection still running is cancelled and its result
// ignored.
func (s *Session) ConfirmFormat(ctx context.Context, format models.DateFormat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseFormatDetecting {
		return invalidPhase("confirm format", s.phase)
	}
	if !format.IsConcrete() {
		return parsererror.NewValidationError("dateFormat", "choose DD/MM/YYYY, MM/DD/YYYY or YYYY-MM-DD, got %q", format)
	}

	if s.busy {
		s.cancel()
		s.cancel = nil
		s.generation++
		s.busy = false
		s.logger.Debug("Manual format choice overrides running detection")
	}

	s.dateFormat = format
	s.excelSerial = false
	s.logger.Info("Date format confirmed", logging.Field{Key: logging.FieldDateFormat, Value: format})
	s.transitionLocked(PhaseFormatConfirmed)
	return s.parseAndClassifyLocked(ctx)
}

func (s *Session) parseAndClassifyLocked(parent context.Context) error {
	s.transitionLocked(PhaseParsing)
	importType, format, serial := s.importType, s.dateFormat, s.excelSerial

	c := s.startLocked(parent)
	s.mu.Unlock()
	out, err := s.backend.Classify(c.ctx, s.file, importType, format, serial)
	s.mu.Lock()
	if serr := s.endLocked(c); serr != nil {
		return serr
	}
	if err != nil {
		return s.failLocked("parsing", err)
	}

	s.transitionLocked(PhaseClassifying)
	s.parsed = out.Parsed
	s.needsReview = out.NeedsReview
	s.stats = out.Stats
	s.rowErrors = out.Errors
	for _, re := range out.Errors {
		s.errors = append(s.errors, re.Message())
	}

	board, err := review.NewBoard(out.NeedsReview, nil)
	if err != nil {
		return s.failLocked("review", err)
	}
	s.board = board

	if len(s.needsReview) > 0 {
		s.transitionLocked(PhaseReviewing)
		return nil
	}
	return s.checkAndSaveLocked(parent)
}

// candidatesLocked is the commit set: classified rows plus reviewed rows
// with their manual categories, in row order.
func (s *Session) candidatesLocked() []models.Candidate {
	out := make([]models.Candidate, 0, len(s.parsed)+len(s.needsReview))
	for _, tx := range s.parsed {
		out = append(out, models.Candidate{Transaction: tx})
	}
	if s.board != nil {
		for _, tx := range s.board.Reviewed() {
			out = append(out, models.Candidate{Transaction: tx, IsManualCategory: true})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Transaction.RowNumber < out[j].Transaction.RowNumber
	})
	return out
}

func (s *Session) checkAndSaveLocked(parent context.Context) error {
	s.transitionLocked(PhaseDuplicateCheck)
	candidates := s.candidatesLocked()

	c := s.startLocked(parent)
	s.mu.Unlock()
	out, err := s.backend.CheckAndSave(c.ctx, s.id, candidates, false)
	s.mu.Lock()
	if serr := s.endLocked(c); serr != nil {
		return serr
	}
	if err != nil {
		return s.failLocked("duplicate check", err)
	}

	if out.HasDuplicates {
		s.duplicates = out.Duplicates
		s.selectedDuplicates = make(map[int]bool, len(out.Duplicates))
		for _, d := range out.Duplicates {
			s.selectedDuplicates[d.Incoming.RowNumber] = true
		}
		s.logger.Info("Possible duplicates found", logging.Field{Key: logging.FieldCount, Value: len(out.Duplicates)})
		return nil
	}

	s.transitionLocked(PhaseSaving)
	s.completeLocked(out)
	return nil
}

func (s *Session) completeLocked(out importer.CommitOutcome) {
	s.saved = out.Saved
	s.records = out.Records
	s.duplicates = nil
	s.selectedDuplicates = nil
	s.transitionLocked(PhaseDone)
	s.logger.Info("Import saved", logging.Field{Key: logging.FieldCount, Value: out.Saved})
}
