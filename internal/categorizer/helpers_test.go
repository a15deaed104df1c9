package categorizer

import (
	"context"
	"sync"
	"time"

	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/textutils"

	"github.com/shopspring/decimal"
)

func newTx(row int, merchant, amount string, kind models.Kind) models.ParsedTransaction {
	return models.NewParsedTransaction(row, merchant, decimal.RequireFromString(amount),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), kind)
}

func testCategories() []models.CategoryConfig {
	return []models.CategoryConfig{
		{Name: "Food", Kind: models.CategoryKindExpense, Keywords: []string{"cafe", "restaurant"}},
		{Name: "Groceries", Kind: models.CategoryKindExpense, Keywords: []string{"supermarket"}},
		{Name: "Transport", Kind: models.CategoryKindExpense},
		{Name: "Salary", Kind: models.CategoryKindIncome, Keywords: []string{"payroll"}},
		{Name: "Transfers", Kind: models.CategoryKindAny},
	}
}

// fakeService answers from a merchant key → result table and records calls.
type fakeService struct {
	mu       sync.Mutex
	answers  map[string]ServiceResult
	err      error
	calls    [][]ServiceRequest
	inFlight int
	maxSeen  int
	delay    time.Duration
	// reverse returns answers in reverse request order.
	reverse bool
}

func (f *fakeService) ClassifyBatch(ctx context.Context, requests []ServiceRequest) ([]ServiceResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, requests)
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}

	var out []ServiceResult
	for _, r := range requests {
		a, ok := f.answers[textutils.MerchantKey(r.Merchant)]
		if !ok {
			continue
		}
		a.RowNumber = r.RowNumber
		out = append(out, a)
	}
	if f.reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}

func (f *fakeService) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
