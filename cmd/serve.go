package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/urbix/urbix-etl/internal/api"
	"github.com/urbix/urbix-etl/internal/monitoring"
	"github.com/urbix/urbix-etl/internal/scorer"
	"github.com/urbix/urbix-etl/internal/sheet"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve scored indicators and sync history over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
		smart, sustainable := scorer.IndicesFromConfig(cfg.Scoring)
		ext := sheet.New(sheet.ColumnsFromConfig(cfg.Spreadsheet), smart, sustainable,
			sheet.WithSheet(cfg.Spreadsheet.Sheet),
			sheet.WithMetrics(metrics),
		)

		router := api.NewRouter(api.Deps{
			Extractor:       ext,
			SpreadsheetPath: cfg.Spreadsheet.Path,
			Sheet:           cfg.Spreadsheet.Sheet,
			Runs:            st,
			Clock:           clockwork.NewRealClock(),
			AllowedOrigins:  cfg.Server.AllowedOrigins,
		})
		srv := api.NewServer(fmt.Sprintf(":%d", cfg.Server.Port), router)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
