package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mlefevre/upc-decisions/internal/fetch"
	"github.com/mlefevre/upc-decisions/internal/store"
)

// newFetchCmd creates and configures the 'fetch' subcommand.
func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download decision documents for records in the spreadsheet",
		Long: `Downloads the document linked by every record in the spreadsheet
into the documents directory, with a bounded worker pool. Already
downloaded documents are skipped. Outcomes are recorded in the fetch
ledger; --failed lists the failures of the most recent run.`,

		RunE: runFetchCommand,
	}

	cmd.Flags().Int("workers", fetch.DefaultWorkers, "concurrent download workers")
	cmd.Flags().String("docs-dir", "documents", "directory to store downloaded documents")
	cmd.Flags().Bool("failed", false, "list failed tasks of the latest run and exit")

	_ = viper.BindPFlag("fetch.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("docs.dir", cmd.Flags().Lookup("docs-dir"))
	return cmd
}

func runFetchCommand(cmd *cobra.Command, _ []string) error {
	logger, err := resolveLogger(cmd.Context())
	if err != nil {
		return err
	}

	if report, _ := cmd.Flags().GetBool("failed"); report {
		return reportFailedTasks(cmd.Context())
	}

	st, err := store.Open(viper.GetString("store.path"))
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	tasks := fetch.BuildTasks(st.Records())
	if len(tasks) == 0 {
		logger.Info("no records with document links; nothing to fetch")
		return nil
	}
	return runFetchPool(cmd.Context(), logger, tasks)
}

// runFetchPool drives the worker pool over the tasks, records every
// outcome in the ledger, and logs a summary. Individual task failures are
// reported, not returned: only infrastructure failures become errors.
func runFetchPool(ctx context.Context, logger *zap.Logger, tasks []fetch.Task) error {
	docsDir := viper.GetString("docs.dir")
	downloader := fetch.NewCollyDownloader(
		viper.GetString("crawler.user_agent"),
		viper.GetDuration("fetch.timeout"),
	)
	pool, err := fetch.NewPool(
		downloader,
		docsDir,
		viper.GetInt("fetch.workers"),
		viper.GetFloat64("fetch.host_qps"),
		logger,
	)
	if err != nil {
		return fmt.Errorf("init fetch pool: %w", err)
	}

	runID := uuid.NewString()
	logger.Info("fetch starting",
		zap.String("run_id", runID),
		zap.Int("tasks", len(tasks)),
		zap.Int("workers", viper.GetInt("fetch.workers")),
	)
	results := pool.FetchAll(ctx, tasks)

	done, failed := 0, 0
	for _, t := range results {
		if t.Status == fetch.StatusDone {
			done++
		} else {
			failed++
		}
	}
	logger.Info("fetch finished",
		zap.String("run_id", runID),
		zap.Int("done", done),
		zap.Int("failed", failed),
	)

	ledger, err := fetch.OpenLedger(viper.GetString("fetch.ledger"))
	if err != nil {
		return fmt.Errorf("open fetch ledger: %w", err)
	}
	defer ledger.Close()
	if err := ledger.Record(ctx, runID, results); err != nil {
		return fmt.Errorf("record fetch outcomes: %w", err)
	}
	return nil
}

func reportFailedTasks(ctx context.Context) error {
	ledger, err := fetch.OpenLedger(viper.GetString("fetch.ledger"))
	if err != nil {
		return fmt.Errorf("open fetch ledger: %w", err)
	}
	defer ledger.Close()

	runID, err := ledger.LatestRun(ctx)
	if err != nil {
		return err
	}
	if runID == "" {
		fmt.Println("[]")
		return nil
	}
	failed, err := ledger.FailedTasks(ctx, runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(failed)
}
