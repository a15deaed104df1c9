package models

import "fmt"

// Row failure reasons.
const (
	ReasonInvalidDate     = "invalid date"
	ReasonInvalidAmount   = "invalid amount"
	ReasonNonPositive     = "amount must be positive"
	ReasonMissingMerchant = "missing merchant"
	ReasonMalformedRow    = "malformed row"
)

// RowError records a statement row that could not be converted. It is data,
// not a Go error: the rest of the file is still imported.
type RowError struct {
	RowNumber int    `json:"row_number"`
	Reason    string `json:"reason"`
}

// Message renders the error for a person reading the import summary.
func (e RowError) Message() string {
	return fmt.Sprintf("Row %d: %s", e.RowNumber, e.Reason)
}
