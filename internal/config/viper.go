// Package config provides Viper-based hierarchical configuration management
package config

import (
	"errors"
	"fmt"
	"strings"

	"fjacquet/statement-import/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// STATEMENT_AI_BATCH_SIZE for ai.batch_size.
const EnvPrefix = "STATEMENT"

// LogConfig controls the logrus adapter.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// ImportConfig controls statement reading and date detection.
type ImportConfig struct {
	MaxDateSamples      int    `mapstructure:"max_date_samples" yaml:"max_date_samples"`
	LocaleDefaultFormat string `mapstructure:"locale_default_format" yaml:"locale_default_format"`
	HeaderSearchRows    int    `mapstructure:"header_search_rows" yaml:"header_search_rows"`
	Sheet               string `mapstructure:"sheet" yaml:"sheet"`
	Delimiter           string `mapstructure:"delimiter" yaml:"delimiter"` // empty means sniff from the header line
	DefaultType         string `mapstructure:"default_type" yaml:"default_type"`
}

// CategorizationConfig controls the merchant cache and review threshold.
type CategorizationConfig struct {
	AutoLearn           bool    `mapstructure:"auto_learn" yaml:"auto_learn"`
	// ConfidenceThreshold is in (0, 1]; service answers at or above it are kept.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	CategoriesFile      string  `mapstructure:"categories_file" yaml:"categories_file"`
	ExpensesFile        string  `mapstructure:"expenses_file" yaml:"expenses_file"`
	IncomeFile          string  `mapstructure:"income_file" yaml:"income_file"`
}

// AIConfig controls the Gemini classification service.
type AIConfig struct {
	Enabled           bool   `mapstructure:"enabled" yaml:"enabled"`
	Model             string `mapstructure:"model" yaml:"model"`
	BatchSize         int    `mapstructure:"batch_size" yaml:"batch_size"`
	MaxConcurrency    int    `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	APIKey            string `mapstructure:"api_key" yaml:"-"` // Never serialize API key
}

// StorageConfig locates the transaction database.
type StorageConfig struct {
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
	UserID       string `mapstructure:"user_id" yaml:"user_id"`
}

// Config represents the complete application configuration
type Config struct {
	Log            LogConfig            `mapstructure:"log" yaml:"log"`
	Import         ImportConfig         `mapstructure:"import" yaml:"import"`
	Categorization CategorizationConfig `mapstructure:"categorization" yaml:"categorization"`
	AI             AIConfig             `mapstructure:"ai" yaml:"ai"`
	Storage        StorageConfig        `mapstructure:"storage" yaml:"storage"`
}

var validDateFormats = map[string]bool{
	"DD/MM/YYYY": true,
	"MM/DD/YYYY": true,
	"YYYY-MM-DD": true,
}

// InitializeConfig initializes Viper configuration with hierarchical loading:
// defaults, then config.yaml from the standard locations, then environment.
func InitializeConfig() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.statement-import")
	v.AddConfigPath(".statement-import")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file %s: %w", v.ConfigFileUsed(), err)
		}
	}
	return load(v)
}

// InitializeConfigFromFile loads an explicit config file; a missing or
// unreadable file is an error.
func InitializeConfigFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return load(v)
}

// Default returns the configuration built from defaults and environment only.
func Default() (*Config, error) {
	return load(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// The API key keeps its conventional unprefixed name.
	_ = v.BindEnv("ai.api_key", "GEMINI_API_KEY", EnvPrefix+"_AI_API_KEY")
	return v
}

func load(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("import.max_date_samples", 20)
	v.SetDefault("import.locale_default_format", "DD/MM/YYYY")
	v.SetDefault("import.header_search_rows", 10)
	v.SetDefault("import.sheet", "")
	v.SetDefault("import.delimiter", "")
	v.SetDefault("import.default_type", "")

	v.SetDefault("categorization.auto_learn", true)
	v.SetDefault("categorization.confidence_threshold", 0.8)
	v.SetDefault("categorization.categories_file", "categories.yaml")
	v.SetDefault("categorization.expenses_file", "expenses.yaml")
	v.SetDefault("categorization.income_file", "income.yaml")

	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.batch_size", 25)
	v.SetDefault("ai.max_concurrency", 4)
	v.SetDefault("ai.requests_per_minute", 10)
	v.SetDefault("ai.timeout_seconds", 30)
	v.SetDefault("ai.api_key", "")

	v.SetDefault("storage.database_path", "database/transactions.db")
	v.SetDefault("storage.user_id", "default")
}

// validateConfig validates the configuration values
func validateConfig(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if config.Import.MaxDateSamples < 1 {
		return fmt.Errorf("import.max_date_samples must be at least 1, got: %d", config.Import.MaxDateSamples)
	}

	if !validDateFormats[config.Import.LocaleDefaultFormat] {
		return fmt.Errorf("import.locale_default_format must be one of DD/MM/YYYY, MM/DD/YYYY, YYYY-MM-DD, got: %s", config.Import.LocaleDefaultFormat)
	}

	if config.Import.HeaderSearchRows < 1 {
		return fmt.Errorf("import.header_search_rows must be at least 1, got: %d", config.Import.HeaderSearchRows)
	}

	if len([]rune(config.Import.Delimiter)) > 1 {
		return fmt.Errorf("import.delimiter must be a single character, got: %s", config.Import.Delimiter)
	}

	switch config.Import.DefaultType {
	case "", "expenses", "roundTrip":
	default:
		return fmt.Errorf("import.default_type must be expenses or roundTrip, got: %s", config.Import.DefaultType)
	}

	if config.AI.Enabled {
		if config.AI.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY required when AI is enabled")
		}

		if config.AI.RequestsPerMinute < 1 || config.AI.RequestsPerMinute > 1000 {
			return fmt.Errorf("ai.requests_per_minute must be between 1 and 1000, got: %d", config.AI.RequestsPerMinute)
		}

		if config.AI.TimeoutSeconds < 1 || config.AI.TimeoutSeconds > 300 {
			return fmt.Errorf("ai.timeout_seconds must be between 1 and 300, got: %d", config.AI.TimeoutSeconds)
		}
	}

	if config.AI.BatchSize < 1 {
		return fmt.Errorf("ai.batch_size must be at least 1, got: %d", config.AI.BatchSize)
	}

	if config.AI.MaxConcurrency < 1 {
		return fmt.Errorf("ai.max_concurrency must be at least 1, got: %d", config.AI.MaxConcurrency)
	}

	if config.Categorization.ConfidenceThreshold <= 0.0 || config.Categorization.ConfidenceThreshold > 1.0 {
		return fmt.Errorf("categorization.confidence_threshold must be above 0.0 and at most 1.0, got: %f", config.Categorization.ConfidenceThreshold)
	}

	if strings.TrimSpace(config.Storage.UserID) == "" {
		return fmt.Errorf("storage.user_id must not be empty")
	}

	return nil
}

// ConfigureLoggingFromConfig builds the structured logger described by config.
func ConfigureLoggingFromConfig(config *Config) logging.Logger {
	return logging.NewLogrusAdapter(config.Log.Level, config.Log.Format)
}
