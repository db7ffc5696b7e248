package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"frizo/margin_engine/internal/config"
	"frizo/margin_engine/internal/logger"
	"frizo/margin_engine/internal/version"
)

// exitError carries a process exit code out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

type rootOptions struct {
	configFile string
	envFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "margin_engine",
		Short: "Margin requirement validation service",
		Long:  "Validates client submitted margin against the backend computed required margin of leveraged orders.",

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to a YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env.local", "Path to an env file loaded before the environment")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newValidateCmd(opts),
		newAssetsCmd(opts),
		newVersionCmd(),
		newHealthCheckCmd(),
	)
	return cmd
}

// load resolves configuration and installs the default logger.
func (o *rootOptions) load() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(o.configFile, o.envFile)
	if err != nil {
		return nil, nil, err
	}

	// Override log level from command line
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}

	log := logger.New(cfg.LogLevel)
	logger.SetDefault(log)
	return cfg, log, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func newHealthCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health-check",
		Short: "Exit successfully when the binary can start",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)

		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}
