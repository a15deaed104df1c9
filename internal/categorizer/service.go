package categorizer

import (
	"context"
	"time"

	"fjacquet/statement-import/internal/models"

	"github.com/shopspring/decimal"
)

// ServiceRequest is one transaction sent to the classification service.
type ServiceRequest struct {
	RowNumber int
	Merchant  string
	Amount    decimal.Decimal
	Date      time.Time
	Kind      models.Kind
	// Categories are the names the service may answer with.
	Categories []string
}

// ServiceResult is the service's answer for one request. An empty Category
// means the service declined to classify the merchant.
type ServiceResult struct {
	RowNumber  int
	Category   string
	Confidence float64
}

// ClassificationService classifies batches of transactions remotely.
// Results may come back in any order and may omit requests.
type ClassificationService interface {
	ClassifyBatch(ctx context.Context, requests []ServiceRequest) ([]ServiceResult, error)
}

// ClassificationServiceFunc adapts a function to ClassificationService.
type ClassificationServiceFunc func(ctx context.Context, requests []ServiceRequest) ([]ServiceResult, error)

// ClassifyBatch calls f.
func (f ClassificationServiceFunc) ClassifyBatch(ctx context.Context, requests []ServiceRequest) ([]ServiceResult, error) {
	return f(ctx, requests)
}
