package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MerchantGroup collects the review transactions sharing one merchant key.
type MerchantGroup struct {
	NormalizedKey string              `json:"normalized_key"`
	DisplayName   string              `json:"display_name"`
	Members       []ParsedTransaction `json:"members"`
	DominantKind  Kind                `json:"dominant_kind"`
}

// Rows returns the member row numbers in order.
func (g MerchantGroup) Rows() []int {
	rows := make([]int, len(g.Members))
	for i, m := range g.Members {
		rows[i] = m.RowNumber
	}
	return rows
}

// ExistingMatch describes the stored transaction an incoming one collides with.
type ExistingMatch struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// DuplicateCandidate is an incoming transaction matching a stored one.
type DuplicateCandidate struct {
	Incoming      ParsedTransaction `json:"incoming"`
	ExistingMatch ExistingMatch     `json:"existing_match"`
}

// Candidate is one entry of the commit set.
type Candidate struct {
	Transaction      ParsedTransaction `json:"transaction"`
	IsManualCategory bool              `json:"is_manual_category"`
}

// CommitRecord is the plain record handed to the repository. SessionID and
// RowNumber form the idempotency reference of the write.
type CommitRecord struct {
	UserID           string          `json:"user_id"`
	SessionID        string          `json:"session_id"`
	RowNumber        int             `json:"row_number"`
	MerchantName     string          `json:"merchant_name"`
	Amount           decimal.Decimal `json:"amount"`
	Date             string          `json:"date"` // ISO-8601 day
	Kind             Kind            `json:"kind"`
	Category         string          `json:"category"`
	IsManualCategory bool            `json:"is_manual_category"`
}

// NewCommitRecord converts a commit candidate for storage.
func NewCommitRecord(userID, sessionID string, c Candidate) CommitRecord {
	tx := c.Transaction
	return CommitRecord{
		UserID:           userID,
		SessionID:        sessionID,
		RowNumber:        tx.RowNumber,
		MerchantName:     tx.MerchantName,
		Amount:           tx.Amount,
		Date:             tx.DateString(),
		Kind:             tx.Kind,
		Category:         tx.Category,
		IsManualCategory: c.IsManualCategory,
	}
}

// StoredTransaction is a transaction read back from the repository.
type StoredTransaction struct {
	ID           string          `json:"id"`
	MerchantName string          `json:"merchant_name"`
	Amount       decimal.Decimal `json:"amount"`
	OccurredOn   time.Time       `json:"occurred_on"`
	Kind         Kind            `json:"kind"`
	Category     string          `json:"category"`
}
