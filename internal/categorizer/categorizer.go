// Package categorizer classifies parsed transactions:
// 1. exact merchant cache lookup per transaction kind
// 2. keyword rules from the category taxonomy
// 3. a remote classification service for the remaining misses, in
// concurrent chunks
// Whatever is left is marked for manual review.
package categorizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/parsererror"

	"golang.org/x/sync/errgroup"
)

// Defaults applied by NewClassifier to zero options.
const (
	DefaultBatchSize           = 25
	DefaultMaxConcurrency      = 4
	DefaultTimeout             = 30 * time.Second
	DefaultConfidenceThreshold = 0.8
)

// Reasons a service answer is sent to review.
const (
	reasonChunkFailed     = "service call failed"
	reasonMissing         = "no result returned"
	reasonDeclined        = "service declined"
	reasonLowConfidence   = "confidence below threshold"
	reasonUnknownCategory = "unknown category"
	reasonUnavailable     = "service unavailable"
)

// Options tunes the service fallback. Zero values take the defaults, so a
// zero ConfidenceThreshold means DefaultConfidenceThreshold; configuration
// only accepts thresholds above zero.
type Options struct {
	BatchSize           int
	MaxConcurrency      int
	Timeout             time.Duration
	ConfidenceThreshold float64
}

// Outcome is the classification of one parsed statement. Results follow the
// input order; Classified and NeedsReview partition it.
type Outcome struct {
	Results     []models.ClassificationResult
	Classified  []models.ParsedTransaction
	NeedsReview []models.ParsedTransaction
	Stats       models.ClassificationStats
}

// Classifier runs the local strategy chain and the service fallback.
type Classifier struct {
	store      MerchantStore
	taxonomy   *models.Taxonomy
	strategies []CategorizationStrategy
	service    ClassificationService
	opts       Options
	logger     logging.Logger
}

// NewClassifier loads the taxonomy from store and builds the default chain
// (merchant cache, then keywords). A nil service sends every miss to review.
func NewClassifier(store MerchantStore, service ClassificationService, opts Options, logger logging.Logger) *Classifier {
	logger = logging.OrDefault(logger).WithField(logging.FieldComponent, "categorizer")

	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = DefaultConfidenceThreshold
	}

	categories, err := store.LoadCategories()
	if err != nil {
		logger.WithError(err).Warn("Failed to load categories")
	}
	taxonomy := models.NewTaxonomy(categories)

	return &Classifier{
		store:    store,
		taxonomy: taxonomy,
		strategies: []CategorizationStrategy{
			NewCacheStrategy(store, taxonomy, logger),
			NewKeywordStrategy(taxonomy, logger),
		},
		service: service,
		opts:    opts,
		logger:  logger,
	}
}

// Taxonomy returns the loaded category taxonomy.
func (c *Classifier) Taxonomy() *models.Taxonomy {
	return c.taxonomy
}

// Classify assigns a category to every transaction it can. The only error is
// the cancellation of ctx.
func (c *Classifier) Classify(ctx context.Context, txs []models.ParsedTransaction) (Outcome, error) {
	results := make([]models.ClassificationResult, len(txs))
	var misses []int

	for i, tx := range txs {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		if r, ok := c.classifyLocally(ctx, tx); ok {
			results[i] = r
			continue
		}
		misses = append(misses, i)
	}

	if len(misses) > 0 {
		if c.service == nil {
			c.logger.Warn("Classification service unavailable, sending misses to review",
				logging.Field{Key: logging.FieldCount, Value: len(misses)})
			for _, i := range misses {
				results[i] = pending(txs[i], reasonUnavailable)
			}
		} else if err := c.classifyRemotely(ctx, txs, misses, results); err != nil {
			return Outcome{}, err
		}
	}

	out := Outcome{Results: results}
	for _, r := range results {
		out.Stats.Record(r.Source)
		if r.NeedsReview() {
			out.NeedsReview = append(out.NeedsReview, r.Transaction)
		} else {
			out.Classified = append(out.Classified, r.Transaction)
		}
	}
	out.Stats.LogSummary(c.logger)
	return out, nil
}

func (c *Classifier) classifyLocally(ctx context.Context, tx models.ParsedTransaction) (models.ClassificationResult, bool) {
	var sr StrategyResults
	for _, s := range c.strategies {
		category, found, err := s.Categorize(ctx, tx)
		sr.Results = append(sr.Results, StrategyResult{Strategy: s.Name(), Category: category, Found: found, Error: err})
		if found && err == nil {
			break
		}
	}

	for _, err := range sr.GetErrors() {
		c.logger.WithError(err).Warn("Categorization strategy failed",
			logging.Field{Key: logging.FieldRow, Value: tx.RowNumber})
	}
	c.logger.Debug("Local strategies tried",
		logging.Field{Key: logging.FieldRow, Value: tx.RowNumber},
		logging.Field{Key: "strategies", Value: sr.Summary()})

	best, ok := sr.GetBestResult()
	if !ok {
		return models.ClassificationResult{}, false
	}
	return models.ClassificationResult{
		Transaction: tx.WithCategory(best.Category.Name),
		Source:      models.SourceCache,
		Strategy:    best.Strategy,
	}, true
}

// classifyRemotely fills results for the miss indexes. Each chunk writes
// only its own indexes, so no locking is needed.
func (c *Classifier) classifyRemotely(ctx context.Context, txs []models.ParsedTransaction, misses []int, results []models.ClassificationResult) error {
	var g errgroup.Group
	g.SetLimit(c.opts.MaxConcurrency)

	chunk := 0
	for start := 0; start < len(misses); start += c.opts.BatchSize {
		end := min(start+c.opts.BatchSize, len(misses))
		idx := misses[start:end]
		n := chunk
		chunk++

		g.Go(func() error {
			c.classifyChunk(ctx, n, txs, idx, results)
			return nil
		})
	}
	_ = g.Wait()

	return ctx.Err()
}

func (c *Classifier) classifyChunk(ctx context.Context, chunk int, txs []models.ParsedTransaction, idx []int, results []models.ClassificationResult) {
	logger := c.logger.WithField(logging.FieldChunk, chunk)

	requests := make([]ServiceRequest, 0, len(idx))
	for _, i := range idx {
		tx := txs[i]
		requests = append(requests, ServiceRequest{
			RowNumber:  tx.RowNumber,
			Merchant:   tx.MerchantName,
			Amount:     tx.Amount,
			Date:       tx.OccurredOn,
			Kind:       tx.Kind,
			Categories: c.taxonomy.Names(tx.Kind),
		})
	}

	cctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	start := time.Now()
	answers, err := c.service.ClassifyBatch(cctx, requests)
	if err != nil {
		err = &parsererror.CategorizationError{Transaction: fmt.Sprintf("chunk %d", chunk), Strategy: "Service", Err: err}
		logger.WithError(err).Warn("Classification chunk failed, sending rows to review",
			logging.Field{Key: logging.FieldCount, Value: len(idx)})
		for _, i := range idx {
			results[i] = pending(txs[i], reasonChunkFailed)
		}
		return
	}

	byRow := make(map[int]ServiceResult, len(answers))
	for _, a := range answers {
		if _, dup := byRow[a.RowNumber]; !dup {
			byRow[a.RowNumber] = a
		}
	}

	for _, i := range idx {
		tx := txs[i]
		answer, ok := byRow[tx.RowNumber]
		if !ok {
			results[i] = pending(tx, reasonMissing)
			continue
		}
		r, reason := c.accept(tx, answer)
		if reason != "" {
			logger.Debug("Service answer rejected",
				logging.Field{Key: logging.FieldRow, Value: tx.RowNumber},
				logging.Field{Key: logging.FieldReason, Value: reason})
			results[i] = pending(tx, reason)
			continue
		}
		results[i] = r
	}

	logger.Debug("Classification chunk done",
		logging.Field{Key: logging.FieldCount, Value: len(idx)},
		logging.Field{Key: logging.FieldDuration, Value: time.Since(start).Milliseconds()})
}

// accept validates one service answer. A non-empty reason rejects it.
func (c *Classifier) accept(tx models.ParsedTransaction, answer ServiceResult) (models.ClassificationResult, string) {
	name := strings.TrimSpace(answer.Category)
	if name == "" || strings.EqualFold(name, models.CategoryUncategorized) {
		return models.ClassificationResult{}, reasonDeclined
	}
	if answer.Confidence < c.opts.ConfidenceThreshold {
		return models.ClassificationResult{}, reasonLowConfidence
	}
	category, ok := c.taxonomy.Lookup(name)
	if !ok || !category.Kind.Allows(tx.Kind) {
		return models.ClassificationResult{}, reasonUnknownCategory
	}

	confidence := answer.Confidence
	return models.ClassificationResult{
		Transaction: tx.WithCategory(category.Name),
		Source:      models.SourceAIService,
		Confidence:  &confidence,
		Strategy:    "Service",
	}, ""
}

func pending(tx models.ParsedTransaction, reason string) models.ClassificationResult {
	return models.ClassificationResult{
		Transaction: tx.WithCategory(""),
		Source:      models.SourceManualPending,
		Strategy:    reason,
	}
}

// Learn remembers the category of each categorized transaction in the
// merchant cache. Failures are logged and counted out; the count of
// remembered merchants is returned.
func (c *Classifier) Learn(txs []models.ParsedTransaction) int {
	learned := 0
	for _, tx := range txs {
		if err := c.LearnOne(tx); err != nil {
			c.logger.WithError(err).Warn("Failed to remember merchant category",
				logging.Field{Key: logging.FieldRow, Value: tx.RowNumber})
			continue
		}
		learned++
	}
	return learned
}

// LearnOne remembers a single transaction's category.
func (c *Classifier) LearnOne(tx models.ParsedTransaction) error {
	if !tx.IsCategorized() {
		return fmt.Errorf("row %d has no category", tx.RowNumber)
	}
	return c.store.Remember(tx.MerchantKey(), tx.Kind, tx.Category)
}
