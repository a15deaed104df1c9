// Package importer exposes the three pipeline operations an import session
// drives: date format detection, parse-and-classify, and the duplicate
// checked commit.
package importer

import (
	"context"
	"fmt"

	"fjacquet/statement-import/internal/categorizer"
	"fjacquet/statement-import/internal/dateformat"
	"fjacquet/statement-import/internal/dedup"
	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/parsererror"
	"fjacquet/statement-import/internal/repository"
	"fjacquet/statement-import/internal/statement"
)

// Options are the per-user pipeline settings.
type Options struct {
	UserID         string
	MaxDateSamples int
	LocaleDefault  models.DateFormat
	// AutoLearn remembers committed categories in the merchant cache.
	AutoLearn bool
}

// ClassifyOutcome is the result of parsing and classifying one statement.
// Parsed holds the classified transactions, NeedsReview the ones awaiting a
// manual category.
type ClassifyOutcome struct {
	Parsed      []models.ParsedTransaction
	NeedsReview []models.ParsedTransaction
	Results     []models.ClassificationResult
	Stats       models.ClassificationStats
	Errors      []models.RowError
}

// CommitOutcome is the result of CheckAndSave. When HasDuplicates is set
// nothing was saved.
type CommitOutcome struct {
	Saved         int
	HasDuplicates bool
	Duplicates    []models.DuplicateCandidate
	Records       []models.CommitRecord
}

// Backend is the set of operations a session needs. *Service implements it.
type Backend interface {
	DetectDateFormat(ctx context.Context, file statement.File) (models.DateFormatDetection, error)
	Classify(ctx context.Context, file statement.File, importType models.ImportType, format models.DateFormat, excelSerial bool) (ClassifyOutcome, error)
	CheckAndSave(ctx context.Context, sessionID string, candidates []models.Candidate, skipDuplicateCheck bool) (CommitOutcome, error)
}

// Service wires the parser, classifier, duplicate detector and repository.
type Service struct {
	parser     *statement.Parser
	classifier *categorizer.Classifier
	detector   *dedup.Detector
	repo       repository.Repository
	opts       Options
	logger     logging.Logger
}

// NewService creates a Service.
func NewService(parser *statement.Parser, classifier *categorizer.Classifier, repo repository.Repository, opts Options, logger logging.Logger) *Service {
	if opts.MaxDateSamples <= 0 {
		opts.MaxDateSamples = dateformat.DefaultMaxSamples
	}
	logger = logging.OrDefault(logger)
	return &Service{
		parser:     parser,
		classifier: classifier,
		detector:   dedup.NewDetector(logger),
		repo:       repo,
		opts:       opts,
		logger:     logger.WithField(logging.FieldComponent, "importer"),
	}
}

// Taxonomy returns the categories the classifier knows.
func (s *Service) Taxonomy() *models.Taxonomy {
	return s.classifier.Taxonomy()
}

// DetectDateFormat samples the date column of file and infers its layout.
func (s *Service) DetectDateFormat(ctx context.Context, file statement.File) (models.DateFormatDetection, error) {
	if err := ctx.Err(); err != nil {
		return models.DateFormatDetection{}, err
	}
	sample, err := s.parser.SampleDates(file, s.opts.MaxDateSamples)
	if err != nil {
		return models.DateFormatDetection{}, err
	}

	detection := dateformat.Detect(sample.Values, dateformat.Options{
		MaxSamples:    s.opts.MaxDateSamples,
		NumericCells:  sample.NumericCells,
		LocaleDefault: s.opts.LocaleDefault,
	})

	s.logger.Info("Date format detected",
		logging.Field{Key: logging.FieldFile, Value: file.Name},
		logging.Field{Key: logging.FieldDateFormat, Value: detection.Format},
		logging.Field{Key: logging.FieldConfidence, Value: detection.Confidence},
		logging.Field{Key: "excel_serial", Value: detection.IsExcelSerial})
	return detection, nil
}

// Classify parses file and classifies every valid row.
func (s *Service) Classify(ctx context.Context, file statement.File, importType models.ImportType, format models.DateFormat, excelSerial bool) (ClassifyOutcome, error) {
	parsed, rowErrors, err := s.parser.Parse(ctx, file, statement.Options{
		ImportType:  importType,
		DateFormat:  format,
		ExcelSerial: excelSerial,
	})
	if err != nil {
		return ClassifyOutcome{}, err
	}

	out, err := s.classifier.Classify(ctx, parsed)
	if err != nil {
		return ClassifyOutcome{}, fmt.Errorf("classify %s: %w", file.Name, err)
	}
	out.Stats.ParseErrorCount = len(rowErrors)

	return ClassifyOutcome{
		Parsed:      out.Classified,
		NeedsReview: out.NeedsReview,
		Results:     out.Results,
		Stats:       out.Stats,
		Errors:      rowErrors,
	}, nil
}

// CheckAndSave commits candidates. Unless skipDuplicateCheck is set, the
// candidates are first compared with stored transactions and nothing is
// saved when duplicates exist.
func (s *Service) CheckAndSave(ctx context.Context, sessionID string, candidates []models.Candidate, skipDuplicateCheck bool) (CommitOutcome, error) {
	logger := s.logger.WithField(logging.FieldSession, sessionID)

	if !skipDuplicateCheck {
		duplicates, unique, err := s.detector.Detect(ctx, s.opts.UserID, candidates, s.repo)
		if err != nil {
			return CommitOutcome{}, err
		}
		if len(duplicates) > 0 {
			logger.Info("Duplicates need confirmation",
				logging.Field{Key: "duplicates", Value: len(duplicates)},
				logging.Field{Key: "unique", Value: unique})
			return CommitOutcome{HasDuplicates: true, Duplicates: duplicates}, nil
		}
	}

	records := make([]models.CommitRecord, 0, len(candidates))
	for _, c := range candidates {
		records = append(records, models.NewCommitRecord(s.opts.UserID, sessionID, c))
	}

	saved, err := s.repo.Save(ctx, records)
	if err != nil {
		return CommitOutcome{}, &parsererror.InfrastructureError{Op: "save transactions", Err: err}
	}

	if s.opts.AutoLearn {
		txs := make([]models.ParsedTransaction, 0, len(candidates))
		for _, c := range candidates {
			txs = append(txs, c.Transaction)
		}
		learned := s.classifier.Learn(txs)
		logger.Debug("Merchant categories learned", logging.Field{Key: logging.FieldCount, Value: learned})
	}

	logger.Info("Import committed", logging.Field{Key: logging.FieldCount, Value: saved})
	return CommitOutcome{Saved: saved, Records: records}, nil
}
