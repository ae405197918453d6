// Package cmd defines and implements the CLI commands for the upcd executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mlefevre/upc-decisions/internal/logging"
	"github.com/mlefevre/upc-decisions/pkg/config"
)

var cfgFile string

// loggerKeyType is the key for storing the logger in the command context.
type loggerKeyType string

const loggerKey loggerKeyType = "logger"

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upcd",
		Short: "Harvest, download, and search Unified Patent Court decisions.",
		Long: `upcd scrapes the UPC decisions-and-orders table into a local
spreadsheet, downloads the linked decision documents, and maintains a
searchable full-text index joining document text with case metadata.`,

		// Runs after flags are parsed but before the subcommand's RunE:
		// load configuration and build the logger every command shares.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.InitConfig(cfgFile); err != nil {
				return err
			}
			logger, err := logging.New(viper.GetBool("logging.development"))
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), loggerKey, logger)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if logger, ok := cmd.Context().Value(loggerKey).(*zap.Logger); ok && logger != nil {
				_ = logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newFetchCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// Execute runs the CLI. SIGINT/SIGTERM cancel the command context so
// long-running crawls and fetches stop cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveLogger pulls the shared logger out of the command context.
func resolveLogger(ctx context.Context) (*zap.Logger, error) {
	logger, ok := ctx.Value(loggerKey).(*zap.Logger)
	if !ok || logger == nil {
		return nil, errors.New("logger not initialized")
	}
	return logger, nil
}
