// Package dedup flags incoming transactions that match already stored ones
// through SHA256 fingerprinting.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/parsererror"
	"fjacquet/statement-import/internal/textutils"

	"github.com/shopspring/decimal"
)

// Reader is the read-only view of stored transactions the detector needs.
type Reader interface {
	// ListInRange returns the user's stored transactions dated within
	// [from, to], both days inclusive.
	ListInRange(ctx context.Context, userID string, from, to time.Time) ([]models.StoredTransaction, error)
}

// Fingerprint hashes the duplicate identity of a transaction.
// Format: SHA256("{merchantKey}|{amount}|{date}|{kind}")
// Amount is formatted with 2 decimal places; date is the calendar day.
func Fingerprint(merchantName string, amount decimal.Decimal, date time.Time, kind models.Kind) string {
	input := fmt.Sprintf("%s|%s|%s|%s",
		textutils.MerchantKey(merchantName),
		amount.Abs().StringFixed(2),
		date.Format(models.ISODateLayout),
		kind)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// Detector compares commit candidates with stored transactions.
type Detector struct {
	logger logging.Logger
}

// NewDetector creates a Detector.
func NewDetector(logger logging.Logger) *Detector {
	return &Detector{logger: logging.OrDefault(logger).WithField(logging.FieldComponent, "dedup")}
}

// Detect reports every candidate whose fingerprint matches a stored
// transaction of the user. Candidates are never removed: the caller decides.
// uniqueCount is the number of candidates without a match.
func (d *Detector) Detect(ctx context.Context, userID string, candidates []models.Candidate, reader Reader) ([]models.DuplicateCandidate, int, error) {
	if len(candidates) == 0 {
		return nil, 0, nil
	}

	from, to := dateSpan(candidates)
	stored, err := reader.ListInRange(ctx, userID, from, to)
	if err != nil {
		return nil, 0, &parsererror.InfrastructureError{Op: "list stored transactions", Err: err}
	}

	existing := make(map[string]models.StoredTransaction, len(stored))
	for _, s := range stored {
		fp := Fingerprint(s.MerchantName, s.Amount, s.OccurredOn, s.Kind)
		if _, ok := existing[fp]; !ok {
			existing[fp] = s
		}
	}

	var duplicates []models.DuplicateCandidate
	for _, c := range candidates {
		tx := c.Transaction
		s, ok := existing[Fingerprint(tx.MerchantName, tx.Amount, tx.OccurredOn, tx.Kind)]
		if !ok {
			continue
		}
		duplicates = append(duplicates, models.DuplicateCandidate{
			Incoming: tx,
			ExistingMatch: models.ExistingMatch{
				ID:          s.ID,
				Date:        s.OccurredOn,
				Amount:      s.Amount,
				Description: s.MerchantName,
			},
		})
		d.logger.Debug("Possible duplicate",
			logging.Field{Key: logging.FieldRow, Value: tx.RowNumber},
			logging.Field{Key: "existing_id", Value: s.ID})
	}

	d.logger.Info("Duplicate check complete",
		logging.Field{Key: logging.FieldCount, Value: len(candidates)},
		logging.Field{Key: "duplicates", Value: len(duplicates)},
		logging.Field{Key: "stored_scanned", Value: len(stored)})

	return duplicates, len(candidates) - len(duplicates), nil
}

func dateSpan(candidates []models.Candidate) (from, to time.Time) {
	for i, c := range candidates {
		day := models.DateOnly(c.Transaction.OccurredOn)
		if i == 0 || day.Before(from) {
			from = day
		}
		if i == 0 || day.After(to) {
			to = day
		}
	}
	return from, to
}
