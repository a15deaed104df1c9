package categorizer

import (
	"context"

	"fjacquet/statement-import/internal/models"
)

// CategorizationStrategy defines a local method for categorizing transactions.
// Strategies run in order before the classification service is consulted.
type CategorizationStrategy interface {
	// Categorize returns the category and whether the strategy matched. An
	// error means the strategy could not run; the chain moves on.
	Categorize(ctx context.Context, tx models.ParsedTransaction) (models.Category, bool, error)

	// Name returns the name of this strategy for logging and debugging purposes.
	Name() string
}
