package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mlefevre/upc-decisions/internal/index"
)

// newSearchCmd creates and configures the 'search' subcommand.
func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Query the search index from the command line",
		Long: `Searches the built index by keyword, optionally narrowed to an
inclusive date range. Dates accept DD/MM/YYYY or YYYY-MM-DD. Matching
entries are printed as JSON, ordered by relevance then date descending.`,

		RunE: runSearchCommand,
	}

	cmd.Flags().StringP("query", "q", "", "keyword to search document text and metadata for")
	cmd.Flags().String("start", "", "earliest decision date to include")
	cmd.Flags().String("end", "", "latest decision date to include")
	cmd.Flags().Int("limit", index.DefaultLimit, "maximum number of results")
	cmd.Flags().String("index-dir", "indexdir", "directory holding the search index")

	_ = viper.BindPFlag("index.dir", cmd.Flags().Lookup("index-dir"))
	_ = viper.BindPFlag("search.limit", cmd.Flags().Lookup("limit"))
	return cmd
}

func runSearchCommand(cmd *cobra.Command, _ []string) error {
	logger, err := resolveLogger(cmd.Context())
	if err != nil {
		return err
	}

	q := index.Query{Limit: viper.GetInt("search.limit")}
	q.Keyword, _ = cmd.Flags().GetString("query")

	if raw, _ := cmd.Flags().GetString("start"); raw != "" {
		dt, perr := index.ParseQueryDate(raw)
		if perr != nil {
			return fmt.Errorf("parse --start: %w", perr)
		}
		q.Start = &dt
	}
	if raw, _ := cmd.Flags().GetString("end"); raw != "" {
		dt, perr := index.ParseQueryDate(raw)
		if perr != nil {
			return fmt.Errorf("parse --end: %w", perr)
		}
		q.End = &dt
	}

	engine, err := index.OpenEngine(viper.GetString("index.dir"))
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer func() {
		if cerr := engine.Close(); cerr != nil {
			logger.Warn("failed to close index", zap.Error(cerr))
		}
	}()

	entries, err := engine.Search(cmd.Context(), q)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}
