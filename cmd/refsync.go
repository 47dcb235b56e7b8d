package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbix/urbix-etl/internal/fetcher"
	"github.com/urbix/urbix-etl/internal/model"
	"github.com/urbix/urbix-etl/internal/refdata"
	"github.com/urbix/urbix-etl/internal/refsync"
)

var (
	refsyncBatchSize   int
	refsyncStatusLimit int
)

var refsyncCmd = &cobra.Command{
	Use:   "refsync",
	Short: "Reference geography synchronization",
	Long:  "Loads states and municipalities from the IBGE localidades API into the store.",
}

var refsyncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch regions and sub-regions and upsert them",
	RunE: func(cmd *cobra.Command, args []string) error {
		if refsyncBatchSize > 0 {
			cfg.RefSync.BatchSize = refsyncBatchSize
		}
		if err := cfg.Validate("refsync"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:         cfg.RefSync.UserAgent,
			Timeout:           time.Duration(cfg.RefSync.BulkTimeoutSecs) * time.Second,
			RequestsPerSecond: cfg.RefSync.RequestsPerSecond,
		})
		client := refdata.New(f, refdata.Options{
			BaseURL:       cfg.RefSync.BaseURL,
			RegionTimeout: time.Duration(cfg.RefSync.RegionTimeoutSecs) * time.Second,
			BulkTimeout:   time.Duration(cfg.RefSync.BulkTimeoutSecs) * time.Second,
		})

		run, err := refsync.New(st, client, refsync.Options{
			SourceName: cfg.RefSync.SourceName,
			BatchSize:  cfg.RefSync.BatchSize,
		}).Run(ctx)
		if run != nil {
			formatSyncRuns(os.Stdout, []model.SyncRun{*run})
		}
		return err
	},
}

var refsyncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the synchronization history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListSyncRuns(ctx, refsyncStatusLimit)
		if err != nil {
			return eris.Wrap(err, "refsync status")
		}
		if len(runs) == 0 {
			zap.L().Info("no sync runs found, run 'urbix refsync run' to start syncing")
			return nil
		}

		formatSyncRuns(os.Stdout, runs)
		return nil
	},
}

func init() {
	refsyncRunCmd.Flags().IntVar(&refsyncBatchSize, "batch-size", 0, "sub-regions per commit (default from config)")
	refsyncStatusCmd.Flags().IntVar(&refsyncStatusLimit, "limit", 20, "number of runs to show")
	refsyncCmd.AddCommand(refsyncRunCmd, refsyncStatusCmd)
	rootCmd.AddCommand(refsyncCmd)
}

// formatSyncRuns writes a tabular representation of sync runs to out.
func formatSyncRuns(out io.Writer, runs []model.SyncRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tSTATUS\tSTARTED\tDURATION\tPROCESSED\tINSERTED\tUPDATED\tFAILED\tERROR")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t-------\t--------\t---------\t--------\t-------\t------\t-----")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			truncate(r.ID, 8),
			r.Source,
			r.Status,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Elapsed.Round(time.Second),
			r.Processed,
			r.Inserted,
			r.Updated,
			r.Failed,
			truncate(r.ErrorMessage, 60),
		)
	}
	_ = w.Flush()
}

// truncate shortens s to n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
