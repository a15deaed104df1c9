// Package categorize handles transaction categorization commands
package categorize

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"fjacquet/statement-import/cmd/root"
	"fjacquet/statement-import/internal/categorizer"
	"fjacquet/statement-import/internal/dateutils"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/parsererror"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// Options describe the transaction to categorize.
type Options struct {
	Merchant string
	Income   bool
	Amount   string
	Date     string
	// Remember stores this category for the merchant instead of classifying.
	Remember string
}

var opts = Options{}

// Cmd represents the categorize command
var Cmd = &cobra.Command{
	Use:   "categorize",
	Short: "Categorize a merchant or teach the merchant cache",
	Long: `Categorize a transaction from its merchant name with the merchant cache,
keyword rules and the Gemini classification service, or remember a category
for the merchant with --remember.`,
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

		return Run(ctx, c.GetClassifier(), opts, cmd.OutOrStdout())
	},
}

func init() {
	Cmd.Flags().StringVarP(&opts.Merchant, "merchant", "m", "", "Merchant name to categorize")
	Cmd.Flags().BoolVarP(&opts.Income, "income", "i", false, "Whether the transaction is income (default: expense)")
	Cmd.Flags().StringVarP(&opts.Amount, "amount", "a", "", "Transaction amount (optional)")
	Cmd.Flags().StringVarP(&opts.Date, "date", "t", "", "Transaction date as YYYY-MM-DD (optional)")
	Cmd.Flags().StringVarP(&opts.Remember, "remember", "r", "", "Category to remember for the merchant")
	_ = Cmd.MarkFlagRequired("merchant")
}

func transaction(o Options) (models.ParsedTransaction, error) {
	if strings.TrimSpace(o.Merchant) == "" {
		return models.ParsedTransaction{}, parsererror.NewValidationError("merchant", "merchant name is required")
	}

	amount := decimal.Zero
	if o.Amount != "" {
		a, err := decimal.NewFromString(o.Amount)
		if err != nil {
			return models.ParsedTransaction{}, parsererror.NewValidationError("amount", "invalid amount %q", o.Amount)
		}
		amount = a.Abs()
	}

	date := models.DateOnly(time.Now())
	if o.Date != "" {
		d, err := dateutils.ParseWithFormat(o.Date, models.DateFormatISO)
		if err != nil {
			return models.ParsedTransaction{}, parsererror.NewValidationError("date", "invalid date %q", o.Date)
		}
		date = d
	}

	kind := models.KindExpense
	if o.Income {
		kind = models.KindIncome
	}
	return models.NewParsedTransaction(1, o.Merchant, amount, date, kind), nil
}

// Run classifies the transaction described by o, or remembers its category,
// and prints the result on out.
func Run(ctx context.Context, classifier *categorizer.Classifier, o Options, out io.Writer) error {
	tx, err := transaction(o)
	if err != nil {
		return err
	}

	if o.Remember != "" {
		if err := classifier.LearnOne(tx.WithCategory(strings.TrimSpace(o.Remember))); err != nil {
			return err
		}
		fmt.Fprintf(out, "Remembered %s (%s) as %s\n", tx.MerchantName, tx.Kind, strings.TrimSpace(o.Remember))
		return nil
	}

	outcome, err := classifier.Classify(ctx, []models.ParsedTransaction{tx})
	if err != nil {
		return err
	}
	result := outcome.Results[0]
	if result.NeedsReview() {
		fmt.Fprintf(out, "%s: no category (%s)\n", tx.MerchantName, result.Strategy)
		return nil
	}
	fmt.Fprintf(out, "%s: %s (via %s)\n", tx.MerchantName, result.Transaction.Category, result.Strategy)
	return nil
}
