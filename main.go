package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"fjacquet/statement-import/cmd/categorize"
	"fjacquet/statement-import/cmd/detect"
	importcmd "fjacquet/statement-import/cmd/import"
	"fjacquet/statement-import/cmd/root"
	"fjacquet/statement-import/internal/config"

	"github.com/sirupsen/logrus"
)

func init() {
	// 1. Load environment variables silently first (no logging yet)
	config.LoadEnv()

	// 2. Configure the global log level before any logger is created
	configureLogLevelDirectly()

	// 3. Initialize root command flags
	root.Init()

	// 4. Add all subcommands
	root.Cmd.AddCommand(detect.Cmd)
	root.Cmd.AddCommand(importcmd.Cmd)
	root.Cmd.AddCommand(categorize.Cmd)
}

// configureLogLevelDirectly sets the global logrus level from LOG_LEVEL.
func configureLogLevelDirectly() {
	logLevel, err := logrus.ParseLevel(strings.ToLower(config.GetEnv("LOG_LEVEL", "info")))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logrus.SetLevel(logLevel)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.Cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
