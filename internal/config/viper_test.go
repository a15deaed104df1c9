package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeConfig_Defaults(t *testing.T) {
	clearTestEnvVars(t)
	chdir(t, t.TempDir())

	config, err := InitializeConfig()
	require.NoError(t, err)

	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, "text", config.Log.Format)
	assert.Equal(t, 20, config.Import.MaxDateSamples)
	assert.Equal(t, "DD/MM/YYYY", config.Import.LocaleDefaultFormat)
	assert.Equal(t, 10, config.Import.HeaderSearchRows)
	assert.Empty(t, config.Import.Delimiter)
	assert.True(t, config.Categorization.AutoLearn)
	assert.Equal(t, 0.8, config.Categorization.ConfidenceThreshold)
	assert.Equal(t, "categories.yaml", config.Categorization.CategoriesFile)
	assert.Equal(t, "expenses.yaml", config.Categorization.ExpensesFile)
	assert.Equal(t, "income.yaml", config.Categorization.IncomeFile)
	assert.False(t, config.AI.Enabled)
	assert.Equal(t, "gemini-2.0-flash", config.AI.Model)
	assert.Equal(t, 25, config.AI.BatchSize)
	assert.Equal(t, 4, config.AI.MaxConcurrency)
	assert.Equal(t, 10, config.AI.RequestsPerMinute)
	assert.Equal(t, 30, config.AI.TimeoutSeconds)
	assert.Equal(t, "database/transactions.db", config.Storage.DatabasePath)
	assert.Equal(t, "default", config.Storage.UserID)
}

func TestInitializeConfig_EnvironmentVariables(t *testing.T) {
	clearTestEnvVars(t)
	chdir(t, t.TempDir())

	testEnvVars := map[string]string{
		"STATEMENT_LOG_LEVEL":                    "debug",
		"STATEMENT_LOG_FORMAT":                   "json",
		"STATEMENT_IMPORT_LOCALE_DEFAULT_FORMAT": "MM/DD/YYYY",
		"STATEMENT_AI_ENABLED":                   "true",
		"STATEMENT_AI_MODEL":                     "gemini-1.5-pro",
		"STATEMENT_AI_BATCH_SIZE":                "5",
		"STATEMENT_CATEGORIZATION_AUTO_LEARN":    "false",
		"STATEMENT_STORAGE_USER_ID":              "alice",
		"GEMINI_API_KEY":                         "test-api-key",
	}
	for key, value := range testEnvVars {
		t.Setenv(key, value)
	}

	config, err := InitializeConfig()
	require.NoError(t, err)

	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, "json", config.Log.Format)
	assert.Equal(t, "MM/DD/YYYY", config.Import.LocaleDefaultFormat)
	assert.True(t, config.AI.Enabled)
	assert.Equal(t, "gemini-1.5-pro", config.AI.Model)
	assert.Equal(t, 5, config.AI.BatchSize)
	assert.False(t, config.Categorization.AutoLearn)
	assert.Equal(t, "alice", config.Storage.UserID)
	assert.Equal(t, "test-api-key", config.AI.APIKey)
}

func TestInitializeConfig_ConfigFileAndPrecedence(t *testing.T) {
	clearTestEnvVars(t)
	dir := t.TempDir()
	chdir(t, dir)

	content := `
log:
  level: "warn"
import:
  delimiter: ";"
  sheet: "Transactions"
ai:
  requests_per_minute: 20
categorization:
  confidence_threshold: 0.9
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0600))

	t.Setenv("STATEMENT_LOG_LEVEL", "error")
	t.Setenv("STATEMENT_AI_REQUESTS_PER_MINUTE", "25")

	config, err := InitializeConfig()
	require.NoError(t, err)

	assert.Equal(t, "error", config.Log.Level)             // env wins over file
	assert.Equal(t, ";", config.Import.Delimiter)          // file value
	assert.Equal(t, "Transactions", config.Import.Sheet)   // file value
	assert.Equal(t, 25, config.AI.RequestsPerMinute)       // env wins over file
	assert.Equal(t, 0.9, config.Categorization.ConfidenceThreshold)
}

func TestInitializeConfigFromFile(t *testing.T) {
	clearTestEnvVars(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  user_id: bob\n"), 0600))

	config, err := InitializeConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bob", config.Storage.UserID)

	_, err = InitializeConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name         string
		modifyConfig func(*Config)
		expectError  string
	}{
		{
			name:         "invalid log level",
			modifyConfig: func(c *Config) { c.Log.Level = "invalid" },
			expectError:  "invalid log level",
		},
		{
			name:         "invalid log format",
			modifyConfig: func(c *Config) { c.Log.Format = "xml" },
			expectError:  "invalid log format",
		},
		{
			name:         "unknown locale default",
			modifyConfig: func(c *Config) { c.Import.LocaleDefaultFormat = "DD.MM.YY" },
			expectError:  "import.locale_default_format",
		},
		{
			name:         "multi character delimiter",
			modifyConfig: func(c *Config) { c.Import.Delimiter = ";;" },
			expectError:  "import.delimiter must be a single character",
		},
		{
			name:         "unknown default type",
			modifyConfig: func(c *Config) { c.Import.DefaultType = "ledger" },
			expectError:  "import.default_type",
		},
		{
			name: "AI enabled without API key",
			modifyConfig: func(c *Config) {
				c.AI.Enabled = true
				c.AI.APIKey = ""
			},
			expectError: "GEMINI_API_KEY required when AI is enabled",
		},
		{
			name: "invalid requests per minute",
			modifyConfig: func(c *Config) {
				c.AI.Enabled = true
				c.AI.APIKey = "test-key"
				c.AI.RequestsPerMinute = 0
			},
			expectError: "ai.requests_per_minute must be between 1 and 1000",
		},
		{
			name:         "zero batch size",
			modifyConfig: func(c *Config) { c.AI.BatchSize = 0 },
			expectError:  "ai.batch_size must be at least 1",
		},
		{
			name:         "invalid confidence threshold",
			modifyConfig: func(c *Config) { c.Categorization.ConfidenceThreshold = 1.5 },
			expectError:  "categorization.confidence_threshold must be above 0.0 and at most 1.0",
		},
		{
			name:         "zero confidence threshold",
			modifyConfig: func(c *Config) { c.Categorization.ConfidenceThreshold = 0 },
			expectError:  "categorization.confidence_threshold must be above 0.0 and at most 1.0",
		},
		{
			name:         "blank user",
			modifyConfig: func(c *Config) { c.Storage.UserID = " " },
			expectError:  "storage.user_id must not be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validTestConfig()
			tt.modifyConfig(config)
			err := validateConfig(config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestConfigureLoggingFromConfig(t *testing.T) {
	config := validTestConfig()
	config.Log.Format = "json"
	assert.NotNil(t, ConfigureLoggingFromConfig(config))
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("STATEMENT_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("STATEMENT_TEST_DOTENV"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("STATEMENT_TEST_DOTENV=loaded\n"), 0600))

	assert.Equal(t, ".env", LoadEnv())
	assert.Equal(t, "loaded", GetEnv("STATEMENT_TEST_DOTENV", "fallback"))
	assert.Equal(t, "fallback", GetEnv("STATEMENT_TEST_UNSET_VARIABLE", "fallback"))
}

func validTestConfig() *Config {
	return &Config{
		Log:    LogConfig{Level: "info", Format: "text"},
		Import: ImportConfig{MaxDateSamples: 20, LocaleDefaultFormat: "DD/MM/YYYY", HeaderSearchRows: 10},
		Categorization: CategorizationConfig{
			ConfidenceThreshold: 0.8,
		},
		AI:      AIConfig{BatchSize: 25, MaxConcurrency: 4, RequestsPerMinute: 10, TimeoutSeconds: 30},
		Storage: StorageConfig{UserID: "default"},
	}
}

// clearTestEnvVars unsets every variable the loader reads; t.Setenv restores
// the original values when the test ends.
func clearTestEnvVars(t *testing.T) {
	t.Helper()
	envVars := []string{
		"STATEMENT_LOG_LEVEL",
		"STATEMENT_LOG_FORMAT",
		"STATEMENT_IMPORT_MAX_DATE_SAMPLES",
		"STATEMENT_IMPORT_LOCALE_DEFAULT_FORMAT",
		"STATEMENT_IMPORT_HEADER_SEARCH_ROWS",
		"STATEMENT_IMPORT_SHEET",
		"STATEMENT_IMPORT_DELIMITER",
		"STATEMENT_IMPORT_DEFAULT_TYPE",
		"STATEMENT_CATEGORIZATION_AUTO_LEARN",
		"STATEMENT_CATEGORIZATION_CONFIDENCE_THRESHOLD",
		"STATEMENT_AI_ENABLED",
		"STATEMENT_AI_MODEL",
		"STATEMENT_AI_BATCH_SIZE",
		"STATEMENT_AI_MAX_CONCURRENCY",
		"STATEMENT_AI_REQUESTS_PER_MINUTE",
		"STATEMENT_AI_TIMEOUT_SECONDS",
		"STATEMENT_AI_API_KEY",
		"STATEMENT_STORAGE_DATABASE_PATH",
		"STATEMENT_STORAGE_USER_ID",
		"GEMINI_API_KEY",
	}

	for _, envVar := range envVars {
		t.Setenv(envVar, "")
		require.NoError(t, os.Unsetenv(envVar))
	}
}
