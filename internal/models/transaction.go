// Package models provides the data structures used throughout the import pipeline.
package models

import (
	"fmt"
	"strings"
	"time"

	"fjacquet/statement-import/internal/textutils"

	"github.com/shopspring/decimal"
)

// Kind is the direction of a transaction.
type Kind string

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindExpense || k == KindIncome
}

// ParseKind accepts the kind names case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindExpense:
		return KindExpense, nil
	case KindIncome:
		return KindIncome, nil
	}
	return "", fmt.Errorf("unknown transaction kind %q", s)
}

// ParsedTransaction is one statement row converted into a normalized
// transaction. Values are immutable: use WithCategory to attach a category.
type ParsedTransaction struct {
	RowNumber    int             `json:"row_number" yaml:"row_number"`
	MerchantName string          `json:"merchant_name" yaml:"merchant_name"`
	Amount       decimal.Decimal `json:"amount" yaml:"amount"` // always > 0
	OccurredOn   time.Time       `json:"occurred_on" yaml:"occurred_on"`
	Kind         Kind            `json:"kind" yaml:"kind"`
	Category     string          `json:"category,omitempty" yaml:"category,omitempty"`
}

// NewParsedTransaction builds a transaction; the date is truncated to a UTC
// calendar day.
func NewParsedTransaction(row int, merchant string, amount decimal.Decimal, occurredOn time.Time, kind Kind) ParsedTransaction {
	return ParsedTransaction{
		RowNumber:    row,
		MerchantName: strings.TrimSpace(merchant),
		Amount:       amount,
		OccurredOn:   DateOnly(occurredOn),
		Kind:         kind,
	}
}

// WithCategory returns a copy of t carrying category.
func (t ParsedTransaction) WithCategory(category string) ParsedTransaction {
	t.Category = category
	return t
}

// MerchantKey returns the folded merchant name used for grouping, the
// merchant cache and duplicate fingerprints.
func (t ParsedTransaction) MerchantKey() string {
	return textutils.MerchantKey(t.MerchantName)
}

// IsCategorized reports whether a non-blank category is attached.
func (t ParsedTransaction) IsCategorized() bool {
	return strings.TrimSpace(t.Category) != ""
}

// DateString formats the occurrence day as ISO-8601.
func (t ParsedTransaction) DateString() string {
	return t.OccurredOn.Format(ISODateLayout)
}

// ISODateLayout is the persisted date format.
const ISODateLayout = "2006-01-02"

// DateOnly drops the clock part of ts, keeping its calendar day in UTC.
func DateOnly(ts time.Time) time.Time {
	if ts.IsZero() {
		return ts
	}
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
