package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/storm-data-gridder/internal/analysis"
	"github.com/couchcryptid/storm-data-gridder/internal/config"
	"github.com/couchcryptid/storm-data-gridder/internal/domain"
	"github.com/couchcryptid/storm-data-gridder/internal/interpolate"
)

const (
	// maxRequestBytes bounds the body of an on-demand analysis request.
	maxRequestBytes = 8 << 20
	// maxRequestObservations bounds the triangulation behind one request.
	maxRequestObservations = 20000
)

// Analyzer grids one product's observations for a time bucket.
type Analyzer interface {
	Analyze(ctx context.Context, product config.Product, bucket time.Time, obs []interpolate.Observation[float64]) (domain.Analysis, error)
}

// Server exposes health, readiness, metrics, and on-demand analysis endpoints.
type Server struct {
	httpServer *http.Server
	analyzer   Analyzer
	products   []config.Product
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /v1/products and /v1/analyses routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, analyzer Analyzer, products []config.Product, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		analyzer: analyzer,
		products: products,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/products", s.handleProducts)
	mux.HandleFunc("POST /v1/analyses", s.handleAnalyze)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleProducts(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"products": s.products})
}

// analysisRequest asks for one analysis over caller-supplied observations.
// A zero TimeBucket means the current hour.
type analysisRequest struct {
	Product      string                     `json:"product"`
	TimeBucket   time.Time                  `json:"time_bucket"`
	Observations *geojson.FeatureCollection `json:"observations"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	if req.Observations != nil && len(req.Observations.Features) > maxRequestObservations {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Errorf("%d observations exceeds the limit of %d", len(req.Observations.Features), maxRequestObservations))
		return
	}

	product, ok := config.ProductByName(s.products, req.Product)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown product %q", req.Product))
		return
	}

	obs, err := domain.ObservationsFromFeatures(req.Observations)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	bucket := req.TimeBucket.UTC()
	if req.TimeBucket.IsZero() {
		bucket = domain.Now().UTC().Truncate(time.Hour)
	}

	a, err := s.analyzer.Analyze(r.Context(), product, bucket, obs)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("on-demand analysis failed", "error", err, "product", product.Name)
		}
		writeError(w, status, err)
		return
	}

	if r.URL.Query().Get("format") == "geojson" {
		w.Header().Set("Content-Type", "application/geo+json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(domain.AnalysisFeatures(a)) //nolint:errcheck // client may have gone away
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, a)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, analysis.ErrNotEnoughObservations),
		errors.Is(err, analysis.ErrGridTooLarge),
		errors.Is(err, interpolate.ErrInvalidConfig):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
