// Package importcmd implements the import command: one statement file is
// taken through date detection, classification, review and the duplicate
// check into the transaction store.
package importcmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"fjacquet/statement-import/cmd/root"
	"fjacquet/statement-import/internal/importer"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/parsererror"
	"fjacquet/statement-import/internal/session"
	"fjacquet/statement-import/internal/statement"
	"fjacquet/statement-import/internal/textutils"

	"github.com/spf13/cobra"
)

// Duplicate handling policies for non-interactive runs.
const (
	DuplicatesAbort  = "abort"
	DuplicatesImport = "import"
	DuplicatesSkip   = "skip"
)

// ErrDuplicatesFound stops a non-interactive import that met possible
// duplicates under the abort policy.
var ErrDuplicatesFound = errors.New("possible duplicates found; rerun with --duplicates=import or --duplicates=skip")

// Options are the import command settings.
type Options struct {
	ImportType string
	DateFormat string
	// ReviewCategories maps a merchant name to the category given to its
	// review group.
	ReviewCategories map[string]string
	// DefaultCategory categorizes every review group left without one.
	DefaultCategory string
	Duplicates      string
	Interactive     bool
	ExportPath      string
	Delimiter       string
}

var opts = Options{}

// Cmd represents the import command
var Cmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a CSV or XLSX statement",
	Long: `Import a CSV or XLSX statement as categorized transactions.

Transactions the merchant cache, keyword rules or classification service cannot
categorize are grouped by merchant for review: answer interactively with
--interactive, or give categories with --review-category and --default-category.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		c, err := root.NewContainer(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		if opts.ImportType == "" {
			opts.ImportType = c.GetConfig().Import.DefaultType
		}

		file, err := statement.Open(args[0])
		if err != nil {
			return err
		}

		s := c.NewSession(file)
		prompter := NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
		view, err := Run(ctx, s, opts, c.GetImporter().Taxonomy(), prompter, cmd.OutOrStdout())
		if err != nil {
			return err
		}

		if opts.ExportPath != "" && view.Phase == session.PhaseDone {
			if err := importer.ExportRecordsToFile(opts.ExportPath, view.Records, delimiter(opts.Delimiter)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d transaction(s) to %s\n", len(view.Records), opts.ExportPath)
		}
		return nil
	},
}

func init() {
	Cmd.Flags().StringVarP(&opts.ImportType, "type", "t", "", "Import type: expenses (credit card detail) or roundTrip (bank statement)")
	Cmd.Flags().StringVarP(&opts.DateFormat, "date-format", "d", string(models.DateFormatAuto), "Date format: AUTO, DD/MM/YYYY, MM/DD/YYYY or YYYY-MM-DD")
	Cmd.Flags().StringToStringVar(&opts.ReviewCategories, "review-category", nil, "Category for a merchant awaiting review, as merchant=category (repeatable)")
	Cmd.Flags().StringVar(&opts.DefaultCategory, "default-category", "", "Category for every merchant still awaiting review")
	Cmd.Flags().StringVar(&opts.Duplicates, "duplicates", DuplicatesAbort, "Possible duplicates: abort, import or skip")
	Cmd.Flags().BoolVarP(&opts.Interactive, "interactive", "i", false, "Ask for the date format, review categories and duplicates")
	Cmd.Flags().StringVarP(&opts.ExportPath, "export", "o", "", "Write the saved transactions to this CSV file")
	Cmd.Flags().StringVar(&opts.Delimiter, "delimiter", ",", "Delimiter of the exported CSV")
}

func delimiter(s string) rune {
	for _, r := range s {
		return r
	}
	return ','
}

// Run drives s to completion and prints a summary on out. Interactive
// questions go through prompter; taxonomy supplies category suggestions.
func Run(ctx context.Context, s *session.Session, o Options, taxonomy *models.Taxonomy, prompter *Prompter, out io.Writer) (session.View, error) {
	importType, err := models.ParseImportType(o.ImportType)
	if err != nil {
		return s.View(), parsererror.NewValidationError("type", "%v", err)
	}
	format, err := models.ParseDateFormat(o.DateFormat)
	if err != nil {
		return s.View(), parsererror.NewValidationError("date-format", "%v", err)
	}
	switch o.Duplicates {
	case DuplicatesAbort, DuplicatesImport, DuplicatesSkip:
	default:
		return s.View(), parsererror.NewValidationError("duplicates", "unknown policy %q", o.Duplicates)
	}

	if err := s.SelectType(ctx, importType, format); err != nil {
		return s.View(), err
	}

	for {
		view := s.View()
		switch view.Phase {
		case session.PhaseFormatDetecting:
			if !o.Interactive {
				return view, parsererror.NewValidationError("date-format", "the date format is ambiguous (%s); pass --date-format", describeSamples(view.Detection))
			}
			chosen, err := prompter.AskDateFormat(view.Detection)
			if err != nil {
				return view, err
			}
			if err := s.ConfirmFormat(ctx, chosen); err != nil {
				return s.View(), err
			}

		case session.PhaseReviewing:
			if err := review(s, o, taxonomy, prompter); err != nil {
				return s.View(), err
			}
			if err := s.FinishReview(ctx); err != nil {
				return s.View(), err
			}

		case session.PhaseDuplicateCheck:
			done, err := resolveDuplicates(ctx, s, view, o, prompter, out)
			if err != nil || done {
				return s.View(), err
			}

		case session.PhaseDone:
			printSummary(out, view)
			return view, nil

		default:
			return view, fmt.Errorf("import stopped in phase %s", view.Phase)
		}
	}
}

func describeSamples(d *models.DateFormatDetection) string {
	if d == nil || len(d.Samples) == 0 {
		return "no samples"
	}
	return "samples: " + strings.Join(d.Samples, ", ")
}

// review categorizes every group from the flags, then interactively.
func review(s *session.Session, o Options, taxonomy *models.Taxonomy, prompter *Prompter) error {
	byKey := make(map[string]string, len(o.ReviewCategories))
	for merchant, category := range o.ReviewCategories {
		byKey[textutils.MerchantKey(merchant)] = category
	}

	for _, g := range s.Groups() {
		if s.IsGroupFullyCategorized(g.NormalizedKey) {
			continue
		}
		category, ok := byKey[g.NormalizedKey]
		if !ok && o.DefaultCategory != "" {
			category, ok = o.DefaultCategory, true
		}
		if !ok && o.Interactive {
			answer, err := prompter.AskCategory(g, taxonomy.Names(g.DominantKind))
			if err != nil {
				return err
			}
			category, ok = answer, true
		}
		if !ok {
			continue
		}
		if err := s.ApplyCategoryToGroup(g.NormalizedKey, category); err != nil {
			return err
		}
	}

	if row, missing := s.NextUncategorized(); missing {
		return fmt.Errorf("%w: row %d and possibly others; pass --review-category, --default-category or --interactive",
			session.ErrReviewIncomplete, row)
	}
	return nil
}

// resolveDuplicates applies the duplicate policy. done reports that the
// import ended without a save.
func resolveDuplicates(ctx context.Context, s *session.Session, view session.View, o Options, prompter *Prompter, out io.Writer) (bool, error) {
	var rows []int
	switch {
	case o.Interactive:
		chosen, err := prompter.AskDuplicates(view.Duplicates)
		if err != nil {
			return false, err
		}
		rows = chosen
	case o.Duplicates == DuplicatesImport:
		rows = view.SelectedDuplicateRows
	case o.Duplicates == DuplicatesSkip:
		rows = nil
	default:
		for _, d := range view.Duplicates {
			fmt.Fprintf(out, "Possible duplicate: row %d %s %s %s\n",
				d.Incoming.RowNumber, d.Incoming.DateString(), d.Incoming.MerchantName, d.Incoming.Amount.StringFixed(2))
		}
		return true, ErrDuplicatesFound
	}

	if err := s.SetDuplicateSelection(rows); err != nil {
		return false, err
	}
	err := s.ConfirmDuplicates(ctx)
	if errors.Is(err, parsererror.ErrValidation) && s.Phase() == session.PhaseDuplicateCheck {
		fmt.Fprintln(out, "Nothing new to import.")
		return true, nil
	}
	return false, err
}

func printSummary(out io.Writer, v session.View) {
	fmt.Fprintf(out, "Imported %d transaction(s) from %s\n", v.Saved, v.FileName)
	fmt.Fprintf(out, "  from cache: %d, classified: %d, reviewed: %d, skipped rows: %d\n",
		v.Stats.CachedCount, v.Stats.AIClassifiedCount, v.Stats.NeedsReviewCount, v.Stats.ParseErrorCount)
	for _, msg := range v.Errors {
		fmt.Fprintf(out, "  %s\n", msg)
	}
}
