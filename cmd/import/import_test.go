package importcmd

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"fjacquet/statement-import/internal/categorizer"
	"fjacquet/statement-import/internal/importer"
	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/parsererror"
	"fjacquet/statement-import/internal/repository"
	"fjacquet/statement-import/internal/session"
	"fjacquet/statement-import/internal/statement"
	"fjacquet/statement-import/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func csvFile(lines ...string) statement.File {
	return statement.File{Name: "card.csv", Data: []byte(strings.Join(lines, "\n") + "\n")}
}

type harness struct {
	service *importer.Service
	repo    *repository.MemoryRepository
}

func newHarness() harness {
	mock := &store.MockMerchantStore{
		Categories: []models.CategoryConfig{
			{Name: "food", Keywords: []string{"cafe"}}, {Name: "groceries"}, {Name: "leisure"},
		},
		ExpenseMappings: map[string]string{"grocery mart": "groceries"},
	}
	logger := logging.NewMockLogger()
	classifier := categorizer.NewClassifier(mock, nil, categorizer.Options{}, logger)
	repo := repository.NewMemoryRepository()
	svc := importer.NewService(statement.NewParser(statement.Config{}, logger), classifier, repo,
		importer.Options{UserID: "u1"}, logger)
	return harness{service: svc, repo: repo}
}

func (h harness) run(t *testing.T, file statement.File, o Options, input string) (session.View, string, error) {
	t.Helper()
	var out bytes.Buffer
	s := session.New("", file, h.service, session.Options{})
	view, err := Run(context.Background(), s, o, h.service.Taxonomy(), NewPrompter(strings.NewReader(input), &out), &out)
	return view, out.String(), err
}

var reviewStatement = csvFile(
	"Date,Description,Amount",
	"2024-01-02,Grocery Mart,45.10",
	"2024-01-03,Book Nook,12.99",
	"2024-01-04,book nook,7.00",
	"2024-01-05,Cafe Luna,3.20",
)

func TestRun_ReviewCategoriesFromFlags(t *testing.T) {
	h := newHarness()
	view, out, err := h.run(t, reviewStatement, Options{
		ImportType:       "expenses",
		DateFormat:       "auto",
		ReviewCategories: map[string]string{"BOOK NOOK": "leisure"},
		Duplicates:       DuplicatesAbort,
	}, "")
	require.NoError(t, err)

	assert.Equal(t, session.PhaseDone, view.Phase)
	assert.Equal(t, 4, view.Saved)
	assert.Contains(t, out, "Imported 4 transaction(s) from card.csv")
	assert.Contains(t, out, "from cache: 2, classified: 0, reviewed: 2")

	records := h.repo.Records()
	require.Len(t, records, 4)
	assert.Equal(t, "leisure", records[1].Category)
	assert.True(t, records[1].IsManualCategory)
}

func TestRun_ReviewIncomplete(t *testing.T) {
	h := newHarness()
	view, _, err := h.run(t, reviewStatement, Options{ImportType: "expenses", Duplicates: DuplicatesAbort}, "")
	assert.ErrorIs(t, err, session.ErrReviewIncomplete)
	assert.Equal(t, session.PhaseReviewing, view.Phase)
	assert.Empty(t, h.repo.Records())
}

func TestRun_Interactive(t *testing.T) {
	h := newHarness()
	ambiguous := csvFile(
		"Date,Description,Amount",
		"05/06/2024,Book Nook,12.99",
		"07/06/2024,Grocery Mart,45.10",
	)

	// Date format, then an empty category answer that is asked again.
	input := "nonsense\nDD/MM/YYYY\n\nleisure\n"
	view, out, err := h.run(t, ambiguous, Options{ImportType: "expenses", Interactive: true, Duplicates: DuplicatesAbort}, input)
	require.NoError(t, err)

	assert.Equal(t, session.PhaseDone, view.Phase)
	assert.Equal(t, models.DateFormatDMY, view.DateFormat)
	assert.Contains(t, out, "Please enter one of the three formats.")
	assert.Contains(t, out, "Book Nook: 1 expense transaction(s)")
	assert.Contains(t, out, "Category [food, groceries, leisure]: ")
	require.Len(t, h.repo.Records(), 2)
	assert.Equal(t, "2024-06-05", h.repo.Records()[0].Date)
}

func TestRun_AmbiguousFormatNonInteractive(t *testing.T) {
	h := newHarness()
	ambiguous := csvFile("Date,Description,Amount", "05/06/2024,Book Nook,12.99")
	view, _, err := h.run(t, ambiguous, Options{ImportType: "expenses", Duplicates: DuplicatesAbort}, "")
	assert.ErrorIs(t, err, parsererror.ErrValidation)
	assert.Equal(t, session.PhaseFormatDetecting, view.Phase)
}

func TestRun_InteractiveInputEnds(t *testing.T) {
	h := newHarness()
	_, _, err := h.run(t, reviewStatement, Options{ImportType: "expenses", Interactive: true, Duplicates: DuplicatesAbort}, "")
	assert.ErrorIs(t, err, io.EOF)
}

func TestRun_DuplicatePolicies(t *testing.T) {
	base := Options{ImportType: "expenses", DefaultCategory: "leisure"}

	tests := []struct {
		name      string
		policy    string
		input     string
		wantErr   error
		wantTotal int
		wantOut   string
	}{
		{name: "abort", policy: DuplicatesAbort, wantErr: ErrDuplicatesFound, wantTotal: 4, wantOut: "Possible duplicate: row 2"},
		{name: "skip", policy: DuplicatesSkip, wantTotal: 4, wantOut: "Nothing new to import."},
		{name: "import", policy: DuplicatesImport, wantTotal: 8, wantOut: "Imported 4 transaction(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			o := base
			o.Duplicates = DuplicatesAbort
			_, _, err := h.run(t, reviewStatement, o, "")
			require.NoError(t, err)

			o.Duplicates = tt.policy
			_, out, err := h.run(t, reviewStatement, o, "")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, h.repo.Records(), tt.wantTotal)
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestRun_InteractiveDuplicates(t *testing.T) {
	h := newHarness()
	o := Options{ImportType: "expenses", DefaultCategory: "leisure", Duplicates: DuplicatesAbort}
	_, _, err := h.run(t, reviewStatement, o, "")
	require.NoError(t, err)

	o.Interactive = true
	view, out, err := h.run(t, reviewStatement, o, "9\n3, 5\n")
	require.NoError(t, err)
	assert.Contains(t, out, "Please list row numbers from the list above.")
	assert.Equal(t, 2, view.Saved)
	assert.Len(t, h.repo.Records(), 6)
}

func TestRun_InteractiveDuplicateAnswers(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantSaved int
		wantTotal int
		wantOut   string
	}{
		{name: "empty answer keeps every duplicate", input: "\n", wantSaved: 4, wantTotal: 8, wantOut: "Imported 4 transaction(s)"},
		{name: "all", input: "all\n", wantSaved: 4, wantTotal: 8, wantOut: "Imported 4 transaction(s)"},
		{name: "none", input: "none\n", wantSaved: 0, wantTotal: 4, wantOut: "Nothing new to import."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			o := Options{ImportType: "expenses", DefaultCategory: "leisure", Duplicates: DuplicatesAbort}
			_, _, err := h.run(t, reviewStatement, o, "")
			require.NoError(t, err)

			o.Interactive = true
			view, out, err := h.run(t, reviewStatement, o, tt.input)
			require.NoError(t, err)
			assert.Contains(t, out, "'none', or empty for all")
			assert.Contains(t, out, tt.wantOut)
			assert.Equal(t, tt.wantSaved, view.Saved)
			assert.Len(t, h.repo.Records(), tt.wantTotal)
		})
	}
}

func TestRun_InvalidOptions(t *testing.T) {
	h := newHarness()
	tests := []struct {
		name string
		o    Options
	}{
		{"missing type", Options{Duplicates: DuplicatesAbort}},
		{"bad format", Options{ImportType: "expenses", DateFormat: "YY", Duplicates: DuplicatesAbort}},
		{"bad policy", Options{ImportType: "expenses", Duplicates: "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, _, err := h.run(t, reviewStatement, tt.o, "")
			assert.ErrorIs(t, err, parsererror.ErrValidation)
			assert.Equal(t, session.PhaseIdle, view.Phase)
		})
	}
}

func TestImportCommand_Flags(t *testing.T) {
	assert.Equal(t, "import <file>", Cmd.Use)
	for _, name := range []string{"type", "date-format", "review-category", "default-category", "duplicates", "interactive", "export", "delimiter"} {
		assert.NotNil(t, Cmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "AUTO", Cmd.Flags().Lookup("date-format").DefValue)
	assert.Equal(t, DuplicatesAbort, Cmd.Flags().Lookup("duplicates").DefValue)
}

func TestDelimiter(t *testing.T) {
	assert.Equal(t, ';', delimiter(";"))
	assert.Equal(t, ',', delimiter(""))
}
