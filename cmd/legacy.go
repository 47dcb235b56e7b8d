package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbix/urbix-etl/internal/legacy"
)

var (
	legacyFile    string
	legacySamples bool
)

var legacyCmd = &cobra.Command{
	Use:   "legacy",
	Short: "Legacy indicator document tools",
}

var legacyMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate legacy indicator definitions into the store",
	Long:  "Upserts every indicator of the legacy JSON or YAML document, creating categories as needed. With --samples, also writes demo values for the first sub-regions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if legacyFile != "" {
			cfg.Legacy.Path = legacyFile
		}
		if err := cfg.Validate("legacy"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		m := legacy.NewMigrator(st, legacy.NewRepository(cfg.Legacy.Path))
		stats, err := m.MigrateIndicators(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("legacy migration finished",
			zap.Int("inserted", stats.Inserted),
			zap.Int("updated", stats.Updated),
			zap.Int("failed", stats.Failed),
			zap.Int("categories_created", stats.CategoriesCreated),
		)

		if !legacySamples {
			return nil
		}
		n, err := m.SynthesizeSamples(ctx, legacy.SampleOptions{
			Regions:    cfg.Legacy.SampleRegions,
			Indicators: cfg.Legacy.SampleIndicators,
			Year:       cfg.Legacy.SampleYear,
		})
		if err != nil {
			return err
		}
		zap.L().Info("sample values written", zap.Int("count", n))
		return nil
	},
}

func init() {
	legacyMigrateCmd.Flags().StringVar(&legacyFile, "file", "", "legacy document path (default from config)")
	legacyMigrateCmd.Flags().BoolVar(&legacySamples, "samples", false, "also synthesize sample indicator values")
	legacyCmd.AddCommand(legacyMigrateCmd)
	rootCmd.AddCommand(legacyCmd)
}
