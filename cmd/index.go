package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mlefevre/upc-decisions/internal/index"
	"github.com/mlefevre/upc-decisions/internal/store"
)

// newIndexCmd creates and configures the 'index' subcommand.
func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or update the search index from downloaded documents",
		Long: `Joins each spreadsheet record with its downloaded document, extracts
the document text, and writes the pair into the search index. Records
without a downloaded document are skipped. Rebuilding over the same
documents is a no-op; new documents are added incrementally.`,

		RunE: runIndexCommand,
	}

	cmd.Flags().String("store", "decisions.xlsx", "spreadsheet file with decision records")
	cmd.Flags().String("docs-dir", "documents", "directory holding downloaded documents")
	cmd.Flags().String("index-dir", "indexdir", "directory holding the search index")

	_ = viper.BindPFlag("store.path", cmd.Flags().Lookup("store"))
	_ = viper.BindPFlag("docs.dir", cmd.Flags().Lookup("docs-dir"))
	_ = viper.BindPFlag("index.dir", cmd.Flags().Lookup("index-dir"))
	return cmd
}

func runIndexCommand(cmd *cobra.Command, _ []string) error {
	logger, err := resolveLogger(cmd.Context())
	if err != nil {
		return err
	}

	st, err := store.Open(viper.GetString("store.path"))
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	records := st.Records()
	if len(records) == 0 {
		logger.Info("spreadsheet holds no records; nothing to index")
		return nil
	}

	builder, err := index.NewBuilder(viper.GetString("index.dir"), logger)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer func() {
		if cerr := builder.Close(); cerr != nil {
			logger.Warn("failed to close index", zap.Error(cerr))
		}
	}()

	stats, err := builder.Build(cmd.Context(), records, viper.GetString("docs.dir"))
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
