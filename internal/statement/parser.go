package statement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fjacquet/statement-import/internal/dateutils"
	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/parsererror"

	"github.com/shopspring/decimal"
)

// DefaultHeaderSearchRows is how many leading rows may precede the header.
const DefaultHeaderSearchRows = 10

// Config holds the file-independent reader settings.
type Config struct {
	HeaderSearchRows int
	// Sheet selects a worksheet by name; empty means the first sheet.
	Sheet string
	// Delimiter forces the CSV separator; zero means sniff it.
	Delimiter rune
}

// Options are the per-import parse parameters.
type Options struct {
	ImportType  models.ImportType
	DateFormat  models.DateFormat
	ExcelSerial bool
}

// DateSample is the raw date column content used for format detection.
type DateSample struct {
	Values []string
	// NumericCells is set when every sampled cell is a raw spreadsheet number.
	NumericCells bool
}

// Parser converts statement files into transactions.
type Parser struct {
	cfg    Config
	logger logging.Logger
}

// NewParser creates a Parser. A nil logger selects the default logger.
func NewParser(cfg Config, logger logging.Logger) *Parser {
	if cfg.HeaderSearchRows <= 0 {
		cfg.HeaderSearchRows = DefaultHeaderSearchRows
	}
	return &Parser{
		cfg:    cfg,
		logger: logging.OrDefault(logger).WithField(logging.FieldComponent, "statement"),
	}
}

// layout is a decoded table with its header located.
type layout struct {
	table     *table
	headerIdx int
	cols      columns
}

func (p *Parser) load(file File) (*layout, error) {
	format, err := DetectFormat(file.Name)
	if err != nil {
		return nil, err
	}
	reader, err := readerFor(format, p.cfg)
	if err != nil {
		return nil, err
	}
	t, err := reader.Read(file)
	if err != nil {
		return nil, err
	}

	idx, cols, ok := findHeader(t.Rows, p.cfg.HeaderSearchRows)
	if !ok {
		return nil, &parsererror.InvalidFormatError{
			FilePath:             file.Name,
			ExpectedFormat:       "a header row naming date, description and amount (or debit/credit) columns",
			ActualContentSnippet: snippet(t.Rows),
			Msg:                  fmt.Sprintf("no header row in the first %d rows", p.cfg.HeaderSearchRows),
		}
	}
	return &layout{table: t, headerIdx: idx, cols: cols}, nil
}

// SampleDates returns up to n non-empty raw cells of the date column.
func (p *Parser) SampleDates(file File, n int) (DateSample, error) {
	l, err := p.load(file)
	if err != nil {
		return DateSample{}, err
	}

	sample := DateSample{}
	numeric := l.table.Numeric
	for _, row := range l.table.Rows[l.headerIdx+1:] {
		if len(sample.Values) >= n {
			break
		}
		value := row.cell(l.cols.Date)
		if row.Malformed || value == "" {
			continue
		}
		if _, err := dateutils.ParseSerial(value); err != nil {
			numeric = false
		}
		sample.Values = append(sample.Values, value)
	}
	sample.NumericCells = numeric && len(sample.Values) > 0
	p.logger.Debug("Sampled date column",
		logging.Field{Key: logging.FieldFile, Value: file.Name},
		logging.Field{Key: logging.FieldCount, Value: len(sample.Values)})
	return sample, nil
}

// Parse converts every data row of file. Rows that cannot be converted are
// reported as RowErrors and never stop the remaining rows; the error return
// is reserved for whole-file failures.
func (p *Parser) Parse(ctx context.Context, file File, opts Options) ([]models.ParsedTransaction, []models.RowError, error) {
	if opts.ImportType != models.ImportTypeExpenses && opts.ImportType != models.ImportTypeRoundTrip {
		return nil, nil, parsererror.NewValidationError("import type", "unknown import type %q", opts.ImportType)
	}
	if !opts.ExcelSerial && !opts.DateFormat.IsConcrete() {
		return nil, nil, parsererror.NewValidationError("date format", "a concrete date format is required, got %q", opts.DateFormat)
	}

	l, err := p.load(file)
	if err != nil {
		return nil, nil, err
	}

	logger := p.logger.WithFields(
		logging.Field{Key: logging.FieldFile, Value: file.Name},
		logging.Field{Key: logging.FieldImportType, Value: opts.ImportType},
	)

	var parsed []models.ParsedTransaction
	var rowErrors []models.RowError
	for i, row := range l.table.Rows[l.headerIdx+1:] {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, fmt.Errorf("parse %s: %w", file.Name, err)
			}
		}
		if !row.Malformed && row.blank() {
			continue
		}

		tx, reason := p.convertRow(row, l, opts)
		if reason != "" {
			logger.Debug("Skipping statement row",
				logging.Field{Key: logging.FieldRow, Value: row.Number},
				logging.Field{Key: logging.FieldReason, Value: reason})
			rowErrors = append(rowErrors, models.RowError{RowNumber: row.Number, Reason: reason})
			continue
		}
		parsed = append(parsed, tx)
	}

	logger.Info("Parsed statement",
		logging.Field{Key: logging.FieldCount, Value: len(parsed)},
		logging.Field{Key: "row_errors", Value: len(rowErrors)})
	return parsed, rowErrors, nil
}

func (p *Parser) convertRow(row rawRow, l *layout, opts Options) (models.ParsedTransaction, string) {
	cols := l.cols
	if row.Malformed || (!l.table.Padded && len(row.Cells) < cols.required()) {
		return models.ParsedTransaction{}, models.ReasonMalformedRow
	}

	occurredOn, err := p.parseDate(row.cell(cols.Date), opts)
	if err != nil {
		return models.ParsedTransaction{}, models.ReasonInvalidDate
	}

	var amount decimal.Decimal
	var kind models.Kind
	var reason string
	if opts.ImportType == models.ImportTypeExpenses {
		amount, reason = expenseAmount(row, cols)
		kind = models.KindExpense
	} else {
		amount, kind, reason = roundTripAmount(row, cols)
	}
	if reason != "" {
		return models.ParsedTransaction{}, reason
	}

	merchant := row.cell(cols.Description)
	if merchant == "" {
		return models.ParsedTransaction{}, models.ReasonMissingMerchant
	}

	return models.NewParsedTransaction(row.Number, merchant, amount, occurredOn, kind), ""
}

func (p *Parser) parseDate(value string, opts Options) (time.Time, error) {
	if opts.ExcelSerial {
		return dateutils.FromExcelSerial(value)
	}
	return dateutils.ParseWithFormat(value, opts.DateFormat)
}

// expenseAmount reads an expense-only row: the debit column when present and
// filled, else the amount column, else the credit column. The value as
// written must be positive.
func expenseAmount(row rawRow, cols columns) (decimal.Decimal, string) {
	raw := row.cell(cols.Debit)
	if raw == "" {
		raw = row.cell(cols.Amount)
	}
	if raw == "" {
		raw = row.cell(cols.Credit)
	}
	amount, err := ParseAmount(raw)
	if err != nil {
		return decimal.Zero, models.ReasonInvalidAmount
	}
	if !amount.IsPositive() {
		return decimal.Zero, models.ReasonNonPositive
	}
	return amount, ""
}

// roundTripAmount reads a bank statement row. A recognised direction cell
// decides the kind; otherwise filled debit/credit columns do; otherwise the
// sign of the amount does. The returned amount is absolute.
func roundTripAmount(row rawRow, cols columns) (decimal.Decimal, models.Kind, string) {
	if income, ok := parseDirection(row.cell(cols.Direction)); ok {
		raw := row.cell(cols.Amount)
		if raw == "" {
			raw = firstFilled(row.cell(cols.Debit), row.cell(cols.Credit))
		}
		amount, err := ParseAmount(raw)
		if err != nil {
			return decimal.Zero, "", models.ReasonInvalidAmount
		}
		if amount.IsZero() {
			return decimal.Zero, "", models.ReasonNonPositive
		}
		return amount.Abs(), kindOf(income), ""
	}

	if cols.hasSplit() {
		if raw := row.cell(cols.Debit); raw != "" {
			amount, err := ParseAmount(raw)
			if err != nil {
				return decimal.Zero, "", models.ReasonInvalidAmount
			}
			if !amount.IsZero() {
				return amount.Abs(), models.KindExpense, ""
			}
		}
		if raw := row.cell(cols.Credit); raw != "" {
			amount, err := ParseAmount(raw)
			if err != nil {
				return decimal.Zero, "", models.ReasonInvalidAmount
			}
			if !amount.IsZero() {
				return amount.Abs(), models.KindIncome, ""
			}
		}
		if row.cell(cols.Amount) == "" {
			if row.cell(cols.Debit) == "" && row.cell(cols.Credit) == "" {
				return decimal.Zero, "", models.ReasonInvalidAmount
			}
			return decimal.Zero, "", models.ReasonNonPositive
		}
	}

	amount, err := ParseAmount(row.cell(cols.Amount))
	if err != nil {
		return decimal.Zero, "", models.ReasonInvalidAmount
	}
	if amount.IsZero() {
		return decimal.Zero, "", models.ReasonNonPositive
	}
	return amount.Abs(), kindOf(amount.IsPositive()), ""
}

func kindOf(income bool) models.Kind {
	if income {
		return models.KindIncome
	}
	return models.KindExpense
}

func firstFilled(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func snippet(rows []rawRow) string {
	for _, row := range rows {
		if !row.Malformed && !row.blank() {
			s := strings.Join(row.Cells, ",")
			if len(s) > 80 {
				s = s[:80]
			}
			return s
		}
	}
	return ""
}
