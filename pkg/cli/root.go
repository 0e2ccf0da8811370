// Package cli provides the hellotel CLI commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/getmockd/hellotel/pkg/app"
	"github.com/getmockd/hellotel/pkg/config"
)

var (
	// Persistent flags available to all subcommands
	configPath string
	jsonOutput bool
	logFile    string

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hellotel",
	Short: "hellotel demonstrates telemetry context propagation over HTTP",
	Long: `hellotel runs an instrumented demo application against a mock backend and
shows how trace context and baggage travel in Jaeger headers.

Configuration is read from an optional YAML file (--config) and then from
HELLOTEL_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true, // We handle errors in Execute()
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also append JSON logs to this file")
}

// loadConfig returns the effective configuration for the current flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the command logger. The returned func closes the log file.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	if logFile == "" {
		return app.NewLogger(cfg.Log, os.Stderr), func() {}, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return app.NewLogger(cfg.Log, os.Stderr, f), func() { _ = f.Close() }, nil
}
