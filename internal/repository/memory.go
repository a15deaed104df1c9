package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"fjacquet/statement-import/internal/models"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository for tests and dry runs.
type MemoryRepository struct {
	mu      sync.Mutex
	records []memoryRecord
	keys    map[rowKey]bool

	// SaveError and ListError, when set, are returned by the next calls.
	SaveError error
	ListError error
}

type memoryRecord struct {
	id  string
	rec models.CommitRecord
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{keys: make(map[rowKey]bool)}
}

// rowKey is the idempotency reference of a record.
type rowKey struct {
	session string
	row     int
}

// Save stores records not seen before for their session and row number.
func (m *MemoryRepository) Save(ctx context.Context, records []models.CommitRecord) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveError != nil {
		return 0, m.SaveError
	}

	saved := 0
	for _, rec := range records {
		key := rowKey{session: rec.SessionID, row: rec.RowNumber}
		if m.keys[key] {
			continue
		}
		m.keys[key] = true
		m.records = append(m.records, memoryRecord{id: uuid.NewString(), rec: rec})
		saved++
	}
	return saved, nil
}

// ListInRange returns the user's stored transactions between two days.
func (m *MemoryRepository) ListInRange(ctx context.Context, userID string, from, to time.Time) ([]models.StoredTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListError != nil {
		return nil, m.ListError
	}

	lo, hi := from.Format(models.ISODateLayout), to.Format(models.ISODateLayout)
	var out []models.StoredTransaction
	for _, r := range m.records {
		if r.rec.UserID != userID || r.rec.Date < lo || r.rec.Date > hi {
			continue
		}
		occurredOn, err := time.Parse(models.ISODateLayout, r.rec.Date)
		if err != nil {
			continue
		}
		out = append(out, models.StoredTransaction{
			ID:           r.id,
			MerchantName: r.rec.MerchantName,
			Amount:       r.rec.Amount,
			OccurredOn:   occurredOn,
			Kind:         r.rec.Kind,
			Category:     r.rec.Category,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredOn.Before(out[j].OccurredOn) })
	return out, nil
}

// Records returns a copy of everything saved.
func (m *MemoryRepository) Records() []models.CommitRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.CommitRecord, len(m.records))
	for i, r := range m.records {
		out[i] = r.rec
	}
	return out
}
