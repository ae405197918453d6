package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mlefevre/upc-decisions/internal/crawler"
	"github.com/mlefevre/upc-decisions/internal/fetch"
	"github.com/mlefevre/upc-decisions/internal/store"
)

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Scrape the decisions table into the local spreadsheet",
		Long: `Walks the paginated decisions-and-orders table with a headless
browser, appending newly found records to the spreadsheet. The crawl
resumes after the last page recorded in an existing spreadsheet and
stops after a run of consecutive empty pages. With --download-docs the
linked decision documents are fetched afterwards.`,

		RunE: runCrawlCommand,
	}

	cmd.Flags().Bool("enable-js", false, "enable JavaScript in the headless browser (slower)")
	cmd.Flags().Bool("download-docs", false, "download linked documents after the crawl")
	cmd.Flags().Int("workers", fetch.DefaultWorkers, "concurrent download workers")
	cmd.Flags().String("output", "", "spreadsheet file to append records to")
	cmd.Flags().Int("max-empty-pages", 3, "consecutive empty pages before the crawl stops")
	cmd.Flags().Int("max-errors", 3, "consecutive failed pages before the crawl aborts")

	_ = viper.BindPFlag("crawler.enable_js", cmd.Flags().Lookup("enable-js"))
	_ = viper.BindPFlag("fetch.workers", cmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("crawler.max_empty_pages", cmd.Flags().Lookup("max-empty-pages"))
	_ = viper.BindPFlag("crawler.max_errors", cmd.Flags().Lookup("max-errors"))
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	logger, err := resolveLogger(cmd.Context())
	if err != nil {
		return err
	}

	cfg, err := crawler.LoadConfig(viper.GetViper())
	if err != nil {
		return fmt.Errorf("load crawler config: %w", err)
	}

	storePath := viper.GetString("store.path")
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		storePath = out
	}
	st, err := store.Open(storePath)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	cfg.StartPage = st.MaxPage() + 1

	engine, closeProvider, err := buildCrawlEngine(cfg, st, logger)
	if err != nil {
		return err
	}
	defer closeProvider()

	logger.Info("crawl starting",
		zap.String("base_url", cfg.BaseURL),
		zap.Int("start_page", cfg.StartPage),
		zap.Bool("js_enabled", cfg.EnableJS),
	)
	result, crawlErr := engine.Crawl(cmd.Context())
	logger.Info("crawl finished",
		zap.Int("pages", result.Pages),
		zap.Int("records", len(result.Records)),
		zap.Int("appended", result.Appended),
		zap.Int("last_page", result.LastPage),
	)

	// Partial results are already persisted; document download proceeds
	// over whatever the crawl collected even when it aborted.
	if download, _ := cmd.Flags().GetBool("download-docs"); download && len(result.Records) > 0 {
		if fetchErr := runFetchPool(cmd.Context(), logger, fetch.BuildTasks(result.Records)); fetchErr != nil {
			logger.Error("document download failed", zap.Error(fetchErr))
		}
	}

	if crawlErr != nil && !errors.Is(crawlErr, context.Canceled) {
		return fmt.Errorf("crawl: %w", crawlErr)
	}
	return nil
}

func buildCrawlEngine(cfg crawler.Config, sink crawler.RecordSink, logger *zap.Logger) (*crawler.Engine, func(), error) {
	provider, err := crawler.NewChromedpProvider(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init page provider: %w", err)
	}
	extractor, err := crawler.NewExtractor(cfg.BaseURL)
	if err != nil {
		provider.Close(context.Background())
		return nil, nil, fmt.Errorf("init extractor: %w", err)
	}
	retry := crawler.NewExponentialRetryPolicy(cfg.RetryAttempts, cfg.RetryBase)
	engine := crawler.New(provider, extractor, sink, retry, cfg, logger)

	closeProvider := func() {
		if cerr := provider.Close(context.Background()); cerr != nil {
			logger.Warn("failed to close page provider", zap.Error(cerr))
		}
	}
	return engine, closeProvider, nil
}
