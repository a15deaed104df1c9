// Package root contains the root command for the application
package root

import (
	"context"
	"fmt"
	"sync"

	"fjacquet/statement-import/internal/config"
	"fjacquet/statement-import/internal/container"
	"fjacquet/statement-import/internal/logging"

	"github.com/spf13/cobra"
)

// CommonFlags represents the flags that are common to all commands
type CommonFlags struct {
	ConfigFile string
	LogLevel   string
	LogFormat  string
	UserID     string
}

var (
	// Log is the shared logger instance for commands
	Log = logging.GetLogger()

	// AppConfig is the configuration loaded by PersistentPreRunE.
	AppConfig *config.Config

	// SharedFlags holds the persistent flag values.
	SharedFlags = CommonFlags{}

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "statement-import",
		Short: "A CLI tool to import bank and credit card statements as categorized transactions.",
		Long: `statement-import reads CSV and XLSX statement exports, detects their date
format, categorizes every transaction from the merchant cache, keyword rules or
the Gemini classification service, lets you review the rest and stores the
result without duplicating transactions imported before.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Welcome to statement-import!")
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return Setup(cmd)
		},
	}

	initOnce sync.Once
)

// Init registers the persistent flags. It is safe to call more than once.
func Init() {
	initOnce.Do(func() {
		Cmd.PersistentFlags().StringVarP(&SharedFlags.ConfigFile, "config", "c", "", "Config file (default: ./config.yaml, .statement-import/ or $HOME/.statement-import/)")
		Cmd.PersistentFlags().StringVar(&SharedFlags.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
		Cmd.PersistentFlags().StringVar(&SharedFlags.LogFormat, "log-format", "", "Log format (text or json)")
		Cmd.PersistentFlags().StringVarP(&SharedFlags.UserID, "user", "u", "", "User whose transactions are read and written")
	})
}

// LoadConfig reads the configuration file named by --config, or the default
// locations, and applies the flag overrides.
func LoadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if SharedFlags.ConfigFile != "" {
		cfg, err = config.InitializeConfigFromFile(SharedFlags.ConfigFile)
	} else {
		cfg, err = config.InitializeConfig()
	}
	if err != nil {
		return nil, err
	}

	if SharedFlags.LogLevel != "" {
		cfg.Log.Level = SharedFlags.LogLevel
	}
	if SharedFlags.LogFormat != "" {
		cfg.Log.Format = SharedFlags.LogFormat
	}
	if SharedFlags.UserID != "" {
		cfg.Storage.UserID = SharedFlags.UserID
	}
	return cfg, nil
}

// Setup loads the configuration and configures the shared logger.
func Setup(cmd *cobra.Command) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	AppConfig = cfg
	Log = config.ConfigureLoggingFromConfig(cfg)
	logging.SetDefault(Log)

	Log.Debug("Configuration loaded",
		logging.Field{Key: "command", Value: cmd.Name()},
		logging.Field{Key: "user_id", Value: cfg.Storage.UserID})
	return nil
}

// NewContainer wires the application for the running command.
func NewContainer(ctx context.Context) (*container.Container, error) {
	if AppConfig == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return container.NewContainerWithLogger(ctx, AppConfig, Log)
}
