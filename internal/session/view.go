package session

import (
	"sort"

	"fjacquet/statement-import/internal/models"
)

// View is a snapshot of a session for display. It shares no memory with the
// session.
type View struct {
	ID       string
	FileName string
	Phase    Phase
	History  []Phase
	Busy     bool

	ImportType  models.ImportType
	DateFormat  models.DateFormat
	ExcelSerial bool
	Detection   *models.DateFormatDetection
	// AwaitingFormatChoice is set while ConfirmFormat is required.
	AwaitingFormatChoice bool

	Parsed           []models.ParsedTransaction
	NeedsReview      []models.ParsedTransaction
	ReviewCategories map[int]string
	Groups           []models.MerchantGroup
	SelectedGroups   []string
	ReviewDone       int
	ReviewTotal      int
	Stats            models.ClassificationStats
	RowErrors        []models.RowError

	Duplicates            []models.DuplicateCandidate
	SelectedDuplicateRows []int

	Saved   int
	Records []models.CommitRecord
	// Errors are user-facing messages: skipped rows and the failure that
	// ended the import, if any.
	Errors []string
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:          s.id,
		FileName:    s.file.Name,
		Phase:       s.phase,
		History:     append([]Phase(nil), s.history...),
		Busy:        s.busy,
		ImportType:  s.importType,
		DateFormat:  s.dateFormat,
		ExcelSerial: s.excelSerial,
		Parsed:      append([]models.ParsedTransaction(nil), s.parsed...),
		NeedsReview: append([]models.ParsedTransaction(nil), s.needsReview...),
		Stats:       s.stats,
		RowErrors:   append([]models.RowError(nil), s.rowErrors...),
		Duplicates:  append([]models.DuplicateCandidate(nil), s.duplicates...),
		Saved:       s.saved,
		Records:     append([]models.CommitRecord(nil), s.records...),
		Errors:      append([]string(nil), s.errors...),
	}

	if s.detection != nil {
		d := *s.detection
		d.Samples = append([]string(nil), d.Samples...)
		d.ParsedSamples = append(d.ParsedSamples[:0:0], d.ParsedSamples...)
		v.Detection = &d
		v.AwaitingFormatChoice = s.phase == PhaseFormatDetecting && !s.busy && d.NeedsManualChoice()
	}

	if s.board != nil {
		v.ReviewCategories = s.board.Categories()
		v.Groups = s.board.Groups()
		v.SelectedGroups = s.board.SelectedGroups()
		v.ReviewDone, v.ReviewTotal = s.board.Progress()
	}

	for row, selected := range s.selectedDuplicates {
		if selected {
			v.SelectedDuplicateRows = append(v.SelectedDuplicateRows, row)
		}
	}
	sort.Ints(v.SelectedDuplicateRows)

	return v
}
