package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fjacquet/statement-import/internal/importer"
	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/parsererror"
	"fjacquet/statement-import/internal/statement"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTx(row int, merchant, amount string) models.ParsedTransaction {
	date := time.Date(2024, 1, row, 0, 0, 0, 0, time.UTC)
	return models.NewParsedTransaction(row, merchant, decimal.RequireFromString(amount), date, models.KindExpense)
}

type classifyCall struct {
	importType  models.ImportType
	format      models.DateFormat
	excelSerial bool
}

type commitCall struct {
	candidates []models.Candidate
	skip       bool
}

// fakeBackend records calls and answers from its fields. When blockDetect is
// set, DetectDateFormat signals started and waits for its context.
type fakeBackend struct {
	detection   models.DateFormatDetection
	detectErr   error
	blockDetect bool
	started     chan struct{}

	outcome     importer.ClassifyOutcome
	classifyErr error

	// duplicates are reported on every unchecked commit.
	duplicates []models.DuplicateCandidate
	commitErr  error

	mu            sync.Mutex
	detectCalls   int
	classifyCalls []classifyCall
	commitCalls   []commitCall
}

func (f *fakeBackend) DetectDateFormat(ctx context.Context, file statement.File) (models.DateFormatDetection, error) {
	f.mu.Lock()
	f.detectCalls++
	f.mu.Unlock()
	if f.blockDetect {
		close(f.started)
		<-ctx.Done()
		return models.DateFormatDetection{}, ctx.Err()
	}
	return f.detection, f.detectErr
}

func (f *fakeBackend) Classify(ctx context.Context, file statement.File, importType models.ImportType, format models.DateFormat, excelSerial bool) (importer.ClassifyOutcome, error) {
	f.mu.Lock()
	f.classifyCalls = append(f.classifyCalls, classifyCall{importType, format, excelSerial})
	f.mu.Unlock()
	return f.outcome, f.classifyErr
}

func (f *fakeBackend) CheckAndSave(ctx context.Context, sessionID string, candidates []models.Candidate, skip bool) (importer.CommitOutcome, error) {
	f.mu.Lock()
	f.commitCalls = append(f.commitCalls, commitCall{candidates, skip})
	f.mu.Unlock()
	if f.commitErr != nil {
		return importer.CommitOutcome{}, f.commitErr
	}
	if !skip && len(f.duplicates) > 0 {
		return importer.CommitOutcome{HasDuplicates: true, Duplicates: f.duplicates}, nil
	}
	return importer.CommitOutcome{Saved: len(candidates)}, nil
}

func candidateRows(cs []models.Candidate) []int {
	rows := make([]int, len(cs))
	for i, c := range cs {
		rows[i] = c.Transaction.RowNumber
	}
	return rows
}

func highISO() models.DateFormatDetection {
	return models.DateFormatDetection{Detected: true, Format: models.DateFormatISO, Confidence: models.ConfidenceHigh}
}

// reviewOutcome classifies rows 1 and 4 and leaves rows 2 and 3 to review.
func reviewOutcome() importer.ClassifyOutcome {
	return importer.ClassifyOutcome{
		Parsed: []models.ParsedTransaction{
			newTx(1, "Grocery Mart", "45.10").WithCategory("groceries"),
			newTx(4, "City Power", "80").WithCategory("utilities"),
		},
		NeedsReview: []models.ParsedTransaction{
			newTx(2, "Cafe Aroma", "3.20"),
			newTx(3, "CAFE  aroma", "4.10"),
		},
		Stats: models.ClassificationStats{CachedCount: 2, NeedsReviewCount: 2},
	}
}

func newSession(b *fakeBackend) (*Session, *logging.MockLogger) {
	logger := logging.NewMockLogger()
	return New("s-1", statement.File{Name: "statement.csv"}, b, Options{Logger: logger}), logger
}

func TestNew_GeneratesID(t *testing.T) {
	s := New("", statement.File{}, &fakeBackend{}, Options{})
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, PhaseIdle, s.Phase())
}

func TestSelectType_Validation(t *testing.T) {
	tests := []struct {
		name       string
		importType models.ImportType
		dateChoice models.DateFormat
	}{
		{"missing type", "", models.DateFormatAuto},
		{"unknown type", "transfers", models.DateFormatAuto},
		{"unknown date format", models.ImportTypeExpenses, "YYYY/DD/MM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{}
			s, _ := newSession(b)

			err := s.SelectType(context.Background(), tt.importType, tt.dateChoice)
			assert.ErrorIs(t, err, parsererror.ErrValidation)

			v := s.View()
			assert.Equal(t, PhaseIdle, v.Phase)
			assert.Equal(t, []Phase{PhaseIdle}, v.History)
			assert.Zero(t, b.detectCalls)
		})
	}
}

func TestSelectType_AutoDetectReachesReview(t *testing.T) {
	b := &fakeBackend{detection: highISO(), outcome: reviewOutcome()}
	s, _ := newSession(b)

	require.NoError(t, s.SelectType(context.Background(), models.ImportTypeExpenses, models.DateFormatAuto))

	v := s.View()
	assert.Equal(t, PhaseReviewing, v.Phase)
	assert.Equal(t, []Phase{
		PhaseIdle, PhaseTypeSelected, PhaseFormatDetecting, PhaseFormatConfirmed,
		PhaseParsing, PhaseClassifying, PhaseReviewing,
	}, v.History)
	assert.Equal(t, []classifyCall{{models.ImportTypeExpenses, models.DateFormatISO, false}}, b.classifyCalls)
	assert.False(t, v.AwaitingFormatChoice)
	require.Len(t, v.Groups, 1)
	assert.Equal(t, "cafe aroma", v.Groups[0].NormalizedKey)
	assert.Equal(t, 0, v.ReviewDone)
	assert.Equal(t, 2, v.ReviewTotal)
}

func TestSelectType_ConcreteChoiceSkipsDetection(t *testing.T) {
	b := &fakeBackend{outcome: reviewOutcome()}
	s, _ := newSession(b)

	require.NoError(t, s.SelectType(context.Background(), models.ImportTypeRoundTrip, models.DateFormatDMY))
	assert.Zero(t, b.detectCalls)
	assert.Equal(t, []classifyCall{{models.ImportTypeRoundTrip, models.DateFormatDMY, false}}, b.classifyCalls)
	assert.Equal(t, PhaseReviewing, s.Phase())
}

func TestSelectType_ExcelSerial(t *testing.T) {
	b := &fakeBackend{
		detection: models.DateFormatDetection{Detected: true, IsExcelSerial: true, Confidence: models.ConfidenceHigh},
		outcome:   reviewOutcome(),
	}
	s, _ := newSession(b)

	require.NoError(t, s.SelectType(context.Background(), models.ImportTypeExpenses, ""))
	require.Len(t, b.classifyCalls, 1)
	assert.True(t, b.classifyCalls[0].excelSerial)
	assert.True(t, s.View().ExcelSerial)
}

func TestSelectType_LowConfidenceWaitsForChoice(t *testing.T) {
	b := &fakeBackend{
		detection: models.DateFormatDetection{
			Detected: true, Format: models.DateFormatDMY, Confidence: models.ConfidenceLow,
			Samples: []string{"05/06/2024"},
		},
		outcome: reviewOutcome(),
	}
	s, _ := newSession(b)
	ctx := context.Background()

	require.NoError(t, s.SelectType(ctx, models.ImportTypeExpenses, models.DateFormatAuto))

	v := s.View()
	assert.Equal(t, PhaseFormatDetecting, v.Phase)
	assert.True(t, v.AwaitingFormatChoice)
	require.NotNil(t, v.Detection)
	assert.Equal(t, []string{"05/06/2024"}, v.Detection.Samples)
	assert.Empty(t, b.classifyCalls)

	err := s.ConfirmFormat(ctx, models.DateFormatAuto)
	assert.ErrorIs(t, err, parsererror.ErrValidation)
	assert.Equal(t, PhaseFormatDetecting, s.Phase())

	require.NoError(t, s.ConfirmFormat(ctx, models.DateFormatMDY))
	assert.Equal(t, PhaseReviewing, s.Phase())
	assert.Equal(t, []classifyCall{{models.ImportTypeExpenses, models.DateFormatMDY, false}}, b.classifyCalls)
}

func TestConfirmFormat_WrongPhase(t *testing.T) {
	s, _ := newSession(&fakeBackend{})
	err := s.ConfirmFormat(context.Background(), models.DateFormatISO)
	assert.ErrorIs(t, err, ErrInvalidPhase)
	assert.ErrorIs(t, err, parsererror.ErrValidation)
}

func TestReview_FinishRequiresEveryCategory(t *testing.T) {
	b := &fakeBackend{detection: highISO(), outcome: reviewOutcome()}
	s, _ := newSession(b)
	ctx := context.Background()
	require.NoError(t, s.SelectType(ctx, models.ImportTypeExpenses, ""))

	require.NoError(t, s.SetCategory(2, "food"))
	assert.False(t, s.IsGroupFullyCategorized("cafe aroma"))

	next, ok := s.NextUncategorized()
	require.True(t, ok)
	assert.Equal(t, 3, next)

	err := s.FinishReview(ctx)
	assert.ErrorIs(t, err, ErrReviewIncomplete)
	assert.ErrorIs(t, err, parsererror.ErrValidation)
	assert.Equal(t, PhaseReviewing, s.Phase())
	assert.Empty(t, b.commitCalls)

	require.NoError(t, s.ApplyCategoryToGroup("cafe aroma", "food"))
	assert.True(t, s.IsGroupFullyCategorized("cafe aroma"))
	require.NoError(t, s.FinishReview(ctx))

	v := s.View()
	assert.Equal(t, PhaseDone, v.Phase)
	assert.Equal(t, 4, v.Saved)

	require.Len(t, b.commitCalls, 1)
	call := b.commitCalls[0]
	assert.False(t, call.skip)
	assert.Equal(t, []int{1, 2, 3, 4}, candidateRows(call.candidates))
	assert.False(t, call.candidates[0].IsManualCategory)
	assert.True(t, call.candidates[1].IsManualCategory)
	assert.Equal(t, "food", call.candidates[2].Transaction.Category)
}

func TestReview_SelectionAndClear(t *testing.T) {
	b := &fakeBackend{detection: highISO(), outcome: reviewOutcome()}
	s, _ := newSession(b)
	require.NoError(t, s.SelectType(context.Background(), models.ImportTypeExpenses, ""))

	// Nothing selected yet.
	assert.ErrorIs(t, s.ApplyCategoryToSelection(nil, "food"), parsererror.ErrValidation)

	selected, err := s.ToggleGroupSelection("cafe aroma")
	require.NoError(t, err)
	assert.True(t, selected)
	assert.Equal(t, []string{"cafe aroma"}, s.View().SelectedGroups)

	require.NoError(t, s.ApplyCategoryToSelection(nil, "dining"))
	assert.Equal(t, map[int]string{2: "dining", 3: "dining"}, s.View().ReviewCategories)

	require.NoError(t, s.ClearCategory(3))
	require.NoError(t, s.ClearSelection())
	v := s.View()
	assert.Equal(t, map[int]string{2: "dining"}, v.ReviewCategories)
	assert.Empty(t, v.SelectedGroups)

	_, err = s.ToggleGroupSelection("unknown")
	assert.ErrorIs(t, err, parsererror.ErrValidation)
}

func TestReview_RejectedOutsideReviewing(t *testing.T) {
	s, _ := newSession(&fakeBackend{})
	assert.ErrorIs(t, s.SetCategory(1, "food"), ErrInvalidPhase)
	assert.ErrorIs(t, s.FinishReview(context.Background()), ErrInvalidPhase)
	_, err := s.ToggleGroupSelection("x")
	assert.ErrorIs(t, err, ErrInvalidPhase)
	assert.Nil(t, s.Groups())
}

func TestNoReviewGoesStraightToSave(t *testing.T) {
	outcome := reviewOutcome()
	outcome.NeedsReview = nil
	b := &fakeBackend{detection: highISO(), outcome: outcome}
	s, _ := newSession(b)

	require.NoError(t, s.SelectType(context.Background(), models.ImportTypeExpenses, ""))

	v := s.View()
	assert.Equal(t, PhaseDone, v.Phase)
	assert.Equal(t, 2, v.Saved)
	assert.Equal(t, []Phase{
		PhaseIdle, PhaseTypeSelected, PhaseFormatDetecting, PhaseFormatConfirmed,
		PhaseParsing, PhaseClassifying, PhaseDuplicateCheck, PhaseSaving, PhaseDone,
	}, v.History)
}

func TestDuplicates(t *testing.T) {
	outcome := reviewOutcome()
	b := &fakeBackend{
		detection: highISO(),
		outcome:   outcome,
		duplicates: []models.DuplicateCandidate{
			{Incoming: outcome.Parsed[0], ExistingMatch: models.ExistingMatch{ID: "a"}},
			{Incoming: outcome.Parsed[1], ExistingMatch: models.ExistingMatch{ID: "b"}},
		},
	}
	s, _ := newSession(b)
	ctx := context.Background()
	require.NoError(t, s.SelectType(ctx, models.ImportTypeExpenses, ""))
	require.NoError(t, s.ApplyCategoryToGroup("cafe aroma", "food"))
	require.NoError(t, s.FinishReview(ctx))

	v := s.View()
	assert.Equal(t, PhaseDuplicateCheck, v.Phase)
	assert.Len(t, v.Duplicates, 2)
	assert.Equal(t, []int{1, 4}, v.SelectedDuplicateRows)

	// Back to review keeps the categories.
	require.NoError(t, s.ReturnToReview())
	assert.Equal(t, PhaseReviewing, s.Phase())
	assert.Equal(t, map[int]string{2: "food", 3: "food"}, s.View().ReviewCategories)
	require.NoError(t, s.FinishReview(ctx))

	_, err := s.ToggleDuplicate(2)
	assert.ErrorIs(t, err, parsererror.ErrValidation)
	assert.ErrorIs(t, s.SetDuplicateSelection([]int{9}), parsererror.ErrValidation)

	selected, err := s.ToggleDuplicate(4)
	require.NoError(t, err)
	assert.False(t, selected)
	assert.Equal(t, []int{1}, s.View().SelectedDuplicateRows)

	require.NoError(t, s.ConfirmDuplicates(ctx))

	v = s.View()
	assert.Equal(t, PhaseDone, v.Phase)
	assert.Equal(t, 3, v.Saved)
	last := b.commitCalls[len(b.commitCalls)-1]
	assert.True(t, last.skip)
	assert.Equal(t, []int{1, 2, 3}, candidateRows(last.candidates))
}

func TestConfirmDuplicates_EmptySet(t *testing.T) {
	outcome := reviewOutcome()
	outcome.NeedsReview = nil
	b := &fakeBackend{
		detection: highISO(),
		outcome:   outcome,
		duplicates: []models.DuplicateCandidate{
			{Incoming: outcome.Parsed[0]},
			{Incoming: outcome.Parsed[1]},
		},
	}
	s, _ := newSession(b)
	ctx := context.Background()
	require.NoError(t, s.SelectType(ctx, models.ImportTypeExpenses, ""))
	require.Equal(t, PhaseDuplicateCheck, s.Phase())

	// Nothing was reviewed, so there is no review to return to.
	assert.ErrorIs(t, s.ReturnToReview(), ErrInvalidPhase)

	require.NoError(t, s.SetDuplicateSelection(nil))
	err := s.ConfirmDuplicates(ctx)
	assert.ErrorIs(t, err, parsererror.ErrValidation)
	assert.Equal(t, PhaseDuplicateCheck, s.Phase())
	assert.Len(t, b.commitCalls, 1)
}

func TestInfrastructureFailureEndsInError(t *testing.T) {
	b := &fakeBackend{detection: highISO(), outcome: reviewOutcome(), commitErr: &parsererror.InfrastructureError{Op: "save transactions", Err: errors.New("disk full")}}
	s, logger := newSession(b)
	ctx := context.Background()
	require.NoError(t, s.SelectType(ctx, models.ImportTypeExpenses, ""))
	require.NoError(t, s.ApplyCategoryToGroup("cafe aroma", "food"))

	err := s.FinishReview(ctx)
	assert.True(t, parsererror.IsInfrastructure(err))

	v := s.View()
	assert.Equal(t, PhaseError, v.Phase)
	require.NotEmpty(t, v.Errors)
	assert.Contains(t, v.Errors[len(v.Errors)-1], "disk full")
	assert.True(t, logger.HasEntry("ERROR", "Import failed"))

	// Only Reset leaves Error.
	assert.ErrorIs(t, s.ReturnToReview(), ErrInvalidPhase)
	assert.ErrorIs(t, s.SelectType(ctx, models.ImportTypeExpenses, ""), ErrInvalidPhase)

	s.Reset()
	v = s.View()
	assert.Equal(t, PhaseIdle, v.Phase)
	assert.Empty(t, v.Errors)
	assert.Empty(t, v.Parsed)
	assert.Nil(t, v.Groups)
}

func TestDetectionFailureEndsInError(t *testing.T) {
	b := &fakeBackend{detectErr: &parsererror.InvalidFormatError{FilePath: "statement.pdf", ExpectedFormat: "CSV or XLSX"}}
	s, _ := newSession(b)

	err := s.SelectType(context.Background(), models.ImportTypeExpenses, "")
	assert.Error(t, err)
	assert.Equal(t, PhaseError, s.Phase())
	assert.Empty(t, b.classifyCalls)
}

func TestRowErrorsAreSurfaced(t *testing.T) {
	outcome := reviewOutcome()
	outcome.Errors = []models.RowError{{RowNumber: 5, Reason: models.ReasonInvalidAmount}}
	b := &fakeBackend{detection: highISO(), outcome: outcome}
	s, _ := newSession(b)

	require.NoError(t, s.SelectType(context.Background(), models.ImportTypeExpenses, ""))
	v := s.View()
	assert.Equal(t, []string{"Row 5: invalid amount"}, v.Errors)
	assert.Equal(t, outcome.Errors, v.RowErrors)
}

func TestReset_DiscardsRunningDetection(t *testing.T) {
	b := &fakeBackend{blockDetect: true, started: make(chan struct{}), outcome: reviewOutcome()}
	s, _ := newSession(b)

	done := make(chan error, 1)
	go func() {
		done <- s.SelectType(context.Background(), models.ImportTypeExpenses, models.DateFormatAuto)
	}()
	<-b.started
	assert.True(t, s.View().Busy)

	// Busy sessions refuse other transitions.
	assert.ErrorIs(t, s.SelectType(context.Background(), models.ImportTypeExpenses, ""), ErrInvalidPhase)

	s.Reset()
	assert.ErrorIs(t, <-done, ErrStale)

	v := s.View()
	assert.Equal(t, PhaseIdle, v.Phase)
	assert.False(t, v.Busy)
	assert.Nil(t, v.Detection)
	assert.Empty(t, b.classifyCalls)
}

func TestConfirmFormat_OverridesRunningDetection(t *testing.T) {
	b := &fakeBackend{blockDetect: true, started: make(chan struct{}), outcome: reviewOutcome()}
	s, _ := newSession(b)

	done := make(chan error, 1)
	go func() {
		done <- s.SelectType(context.Background(), models.ImportTypeExpenses, models.DateFormatAuto)
	}()
	<-b.started

	require.NoError(t, s.ConfirmFormat(context.Background(), models.DateFormatDMY))
	assert.ErrorIs(t, <-done, ErrStale)

	v := s.View()
	assert.Equal(t, PhaseReviewing, v.Phase)
	assert.Equal(t, models.DateFormatDMY, v.DateFormat)
	assert.Nil(t, v.Detection)
}

func TestView_IsACopy(t *testing.T) {
	b := &fakeBackend{detection: highISO(), outcome: reviewOutcome()}
	s, _ := newSession(b)
	require.NoError(t, s.SelectType(context.Background(), models.ImportTypeExpenses, ""))

	v := s.View()
	v.NeedsReview[0].MerchantName = "changed"
	v.History[0] = PhaseDone

	fresh := s.View()
	assert.Equal(t, "Cafe Aroma", fresh.NeedsReview[0].MerchantName)
	assert.Equal(t, PhaseIdle, fresh.History[0])
}
