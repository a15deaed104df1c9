// Package repository persists committed transactions.
package repository

import (
	"context"
	"time"

	"fjacquet/statement-import/internal/models"
)

// Repository stores committed transactions. Save must be idempotent per
// (SessionID, RowNumber): a record already stored is skipped, not duplicated.
type Repository interface {
	// Save stores records and returns how many were newly written.
	Save(ctx context.Context, records []models.CommitRecord) (int, error)
	// ListInRange returns the user's transactions dated within [from, to],
	// both days inclusive, ordered by date.
	ListInRange(ctx context.Context, userID string, from, to time.Time) ([]models.StoredTransaction, error)
}
