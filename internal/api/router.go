// Package api serves the scored indicators, the spreadsheet summary and the
// synchronization history over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/urbix/urbix-etl/internal/model"
	"github.com/urbix/urbix-etl/internal/monitoring"
	"github.com/urbix/urbix-etl/internal/sheet"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

const (
	defaultRunLimit     = 20
	maxRunLimit         = 500
	defaultLookbackHour = 24
)

// Extractor produces scored indicators from the spreadsheet.
type Extractor interface {
	Extract(ctx context.Context, path string) (*sheet.Extraction, error)
}

// Deps wires the router.
type Deps struct {
	Extractor       Extractor
	SpreadsheetPath string
	Sheet           string
	Runs            monitoring.SyncRunLister
	Clock           clockwork.Clock
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
}

type handler struct {
	d         Deps
	collector *monitoring.Collector
	log       *zap.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	h := &handler{
		d:         d,
		collector: monitoring.NewCollector(d.Runs, d.Clock),
		log:       zap.L().With(zap.String("component", "api")),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", h.root)
	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/indicators", h.indicators)
		r.Get("/indicators/summary", h.indicatorSummary)
		r.Get("/sync-runs", h.syncRuns)
		r.Get("/sync-runs/summary", h.syncSummary)
	})
	return r
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (h *handler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Bem-vindo à API do Urbix!",
		"version": Version,
	})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *handler) indicators(w http.ResponseWriter, r *http.Request) {
	ext, err := h.d.Extractor.Extract(r.Context(), h.d.SpreadsheetPath)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := ext.Indicators
	if out == nil {
		out = []model.ScoredIndicator{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) indicatorSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := sheet.Summarize(r.Context(), h.d.SpreadsheetPath, h.d.Sheet)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handler) syncRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", defaultRunLimit, maxRunLimit)
	if !ok {
		return
	}
	runs, err := h.d.Runs.ListSyncRuns(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if runs == nil {
		runs = []model.SyncRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *handler) syncSummary(w http.ResponseWriter, r *http.Request) {
	hours, ok := intParam(w, r, "hours", defaultLookbackHour, 24*365)
	if !ok {
		return
	}
	snap, err := h.collector.Collect(r.Context(), hours)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// intParam parses a positive query parameter, writing a 400 on bad input.
func intParam(w http.ResponseWriter, r *http.Request, name string, def, maxVal int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": name + " must be a positive integer"})
		return 0, false
	}
	return min(n, maxVal), true
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	if eris.Is(err, model.ErrSourceMissing) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Arquivo de dados não encontrado"})
		return
	}
	h.log.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"detail": "Erro ao processar dados: " + err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
