package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/urbix/urbix-etl/internal/model"
	"github.com/urbix/urbix-etl/internal/scorer"
	"github.com/urbix/urbix-etl/internal/sheet"
)

var (
	scoreFile    string
	scoreSummary bool
	scoreFormat  string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score the indicator spreadsheet and print the result",
	Long:  "Reads the spreadsheet, computes the smart-city and sustainability indices for every row and prints them, or prints per-column statistics with --summary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if scoreFile != "" {
			cfg.Spreadsheet.Path = scoreFile
		}
		if err := cfg.Validate("score"); err != nil {
			return err
		}
		if scoreFormat != "json" && scoreFormat != "table" {
			return eris.Errorf("unsupported format %q", scoreFormat)
		}
		ctx := cmd.Context()

		if scoreSummary {
			summary, err := sheet.Summarize(ctx, cfg.Spreadsheet.Path, cfg.Spreadsheet.Sheet)
			if err != nil {
				return err
			}
			if scoreFormat == "table" {
				formatSummary(os.Stdout, summary)
				return nil
			}
			return writeIndented(os.Stdout, summary)
		}

		smart, sustainable := scorer.IndicesFromConfig(cfg.Scoring)
		ext := sheet.New(sheet.ColumnsFromConfig(cfg.Spreadsheet), smart, sustainable,
			sheet.WithSheet(cfg.Spreadsheet.Sheet))
		res, err := ext.Extract(ctx, cfg.Spreadsheet.Path)
		if err != nil {
			return err
		}
		if scoreFormat == "table" {
			formatScores(os.Stdout, res.Indicators, sheet.ColumnsFromConfig(cfg.Spreadsheet))
			return nil
		}
		return writeIndented(os.Stdout, res.Indicators)
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreFile, "file", "", "spreadsheet path (default from config)")
	scoreCmd.Flags().BoolVar(&scoreSummary, "summary", false, "print column statistics instead of scores")
	scoreCmd.Flags().StringVar(&scoreFormat, "format", "json", "output format: json or table")
	rootCmd.AddCommand(scoreCmd)
}

func writeIndented(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "write output")
}

// formatScores writes one line per scored row.
func formatScores(out io.Writer, rows []model.ScoredIndicator, cols sheet.Columns) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CODE\tNAME\tYEAR\tSMART\tSUSTAINABLE")
	_, _ = fmt.Fprintln(w, "----\t----\t----\t-----\t-----------")
	for _, r := range rows {
		year := "-"
		if y, ok := r.Record[cols.Year]; ok && y != nil {
			year = fmt.Sprint(y)
		}
		_, _ = fmt.Fprintf(w, "%v\t%v\t%s\t%.4f\t%.4f\n",
			r.Record[cols.RegionCode],
			r.Record[cols.RegionName],
			year,
			r.SmartIndex,
			r.SustainabilityIndex,
		)
	}
	_ = w.Flush()
}

// formatSummary writes column statistics sorted by column name.
func formatSummary(out io.Writer, summary map[string]model.ColumnStats) {
	names := make([]string, 0, len(summary))
	for name := range summary {
		names = append(names, name)
	}
	slices.Sort(names)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COLUMN\tMIN\tMAX\tMEAN\tCOUNT")
	_, _ = fmt.Fprintln(w, "------\t---\t---\t----\t-----")
	for _, name := range names {
		s := summary[name]
		_, _ = fmt.Fprintf(w, "%s\t%g\t%g\t%.4f\t%d\n", name, s.Min, s.Max, s.Mean, s.Count)
	}
	_ = w.Flush()
}
