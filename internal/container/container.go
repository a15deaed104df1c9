// Package container provides dependency injection for the statement-import
// application. It centralizes the creation and wiring of all application
// dependencies, making them explicit and testable.
package container

import (
	"context"
	"fmt"
	"time"

	"fjacquet/statement-import/internal/categorizer"
	"fjacquet/statement-import/internal/config"
	"fjacquet/statement-import/internal/importer"
	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"
	"fjacquet/statement-import/internal/repository"
	"fjacquet/statement-import/internal/session"
	"fjacquet/statement-import/internal/statement"
	"fjacquet/statement-import/internal/store"
)

// Container holds all application dependencies and provides methods to access them.
//
// Container is immutable after creation - all fields are private and can only
// be accessed through getter methods.
type Container struct {
	logger     logging.Logger
	config     *config.Config
	store      *store.MerchantStore
	aiService  *categorizer.GeminiService
	classifier *categorizer.Classifier
	parser     *statement.Parser
	repository *repository.SQLiteRepository
	importer   *importer.Service
}

// NewContainer creates and wires all application dependencies. The logger is
// built from cfg.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	return NewContainerWithLogger(ctx, cfg, config.ConfigureLoggingFromConfig(cfg))
}

// NewContainerWithLogger wires the dependencies around an existing logger.
func NewContainerWithLogger(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	logger = logging.OrDefault(logger)

	merchantStore := store.NewMerchantStore(
		cfg.Categorization.CategoriesFile,
		cfg.Categorization.ExpensesFile,
		cfg.Categorization.IncomeFile,
		logger,
	)

	// The classifier takes an interface; keep a typed nil out of it.
	var aiService *categorizer.GeminiService
	var service categorizer.ClassificationService
	if cfg.AI.Enabled && cfg.AI.APIKey != "" {
		var err error
		aiService, err = categorizer.NewGeminiService(ctx, categorizer.GeminiConfig{
			APIKey:            cfg.AI.APIKey,
			Model:             cfg.AI.Model,
			RequestsPerMinute: cfg.AI.RequestsPerMinute,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create classification service: %w", err)
		}
		service = aiService
		logger.Info("AI categorization enabled")
	} else {
		logger.Info("AI categorization disabled")
	}

	classifier := categorizer.NewClassifier(merchantStore, service, categorizer.Options{
		BatchSize:           cfg.AI.BatchSize,
		MaxConcurrency:      cfg.AI.MaxConcurrency,
		Timeout:             time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
		ConfidenceThreshold: cfg.Categorization.ConfidenceThreshold,
	}, logger)

	var delimiter rune
	for _, r := range cfg.Import.Delimiter {
		delimiter = r
		break
	}
	parser := statement.NewParser(statement.Config{
		HeaderSearchRows: cfg.Import.HeaderSearchRows,
		Sheet:            cfg.Import.Sheet,
		Delimiter:        delimiter,
	}, logger)

	repo, err := repository.OpenSQLite(ctx, cfg.Storage.DatabasePath, logger)
	if err != nil {
		if aiService != nil {
			_ = aiService.Close()
		}
		return nil, err
	}

	svc := importer.NewService(parser, classifier, repo, importer.Options{
		UserID:         cfg.Storage.UserID,
		MaxDateSamples: cfg.Import.MaxDateSamples,
		LocaleDefault:  models.DateFormat(cfg.Import.LocaleDefaultFormat),
		AutoLearn:      cfg.Categorization.AutoLearn,
	}, logger)

	logger.Info("Container initialized successfully",
		logging.Field{Key: "categories_count", Value: classifier.Taxonomy().Len()},
		logging.Field{Key: "ai_enabled", Value: aiService != nil},
		logging.Field{Key: "database", Value: cfg.Storage.DatabasePath})

	return &Container{
		logger:     logger,
		config:     cfg,
		store:      merchantStore,
		aiService:  aiService,
		classifier: classifier,
		parser:     parser,
		repository: repo,
		importer:   svc,
	}, nil
}

// NewSession starts an import session for file with a fresh session id.
func (c *Container) NewSession(file statement.File) *session.Session {
	return session.New("", file, c.importer, session.Options{Logger: c.logger})
}

// GetLogger returns the container's logger instance.
func (c *Container) GetLogger() logging.Logger {
	return c.logger
}

// GetConfig returns the container's configuration instance.
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetStore returns the merchant store.
func (c *Container) GetStore() *store.MerchantStore {
	return c.store
}

// GetClassifier returns the classifier.
func (c *Container) GetClassifier() *categorizer.Classifier {
	return c.classifier
}

// GetParser returns the statement parser.
func (c *Container) GetParser() *statement.Parser {
	return c.parser
}

// GetRepository returns the transaction repository.
func (c *Container) GetRepository() *repository.SQLiteRepository {
	return c.repository
}

// GetImporter returns the import pipeline.
func (c *Container) GetImporter() *importer.Service {
	return c.importer
}

// GetAIService returns the classification service, or nil when AI is disabled.
func (c *Container) GetAIService() *categorizer.GeminiService {
	return c.aiService
}

// Close releases the database and the classification service.
func (c *Container) Close() error {
	var firstErr error
	if c.aiService != nil {
		if err := c.aiService.Close(); err != nil {
			firstErr = err
		}
	}
	if err := c.repository.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	c.logger.Info("Container closed")
	return firstErr
}
