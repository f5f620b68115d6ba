package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/catchment-etl/internal/adapter/hydromodel"
	"github.com/couchcryptid/catchment-etl/internal/domain"
	"github.com/couchcryptid/catchment-etl/internal/pipeline"
)

// Catalog serves normalized catchment tables by name.
type Catalog interface {
	List(ctx context.Context) ([]string, error)
	Resolve(ctx context.Context, name string) (string, error)
	Normalize(relPath string) (domain.CatchmentTable, error)
}

// Server exposes health, readiness, metrics, and catchment data endpoints.
type Server struct {
	httpServer *http.Server
	catalog    Catalog
	spinUp     int
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /catchments routes. spinUp is the number of window repetitions used when a
// simulation is requested.
func NewServer(addr string, ready sharedobs.ReadinessChecker, catalog Catalog, spinUp int, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		catalog: catalog,
		spinUp:  spinUp,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /catchments", s.handleList)
	mux.HandleFunc("GET /catchments/{name}", s.handleTable)
	mux.HandleFunc("GET /catchments/{name}/simulations/{model}", s.handleSimulation)

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

type catchmentSummary struct {
	Name string `json:"name"`
	File string `json:"file"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	paths, err := s.catalog.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]catchmentSummary, len(paths))
	for i, p := range paths {
		out[i] = catchmentSummary{Name: domain.CatchmentName(p), File: p}
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"catchments": out})
}

type tableResponse struct {
	Catchment string                   `json:"catchment"`
	File      string                   `json:"file"`
	Columns   []string                 `json:"columns"`
	Records   []domain.CatchmentRecord `json:"records"`
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	path, table, err := s.load(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	records := table.Records
	if records == nil {
		records = []domain.CatchmentRecord{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, tableResponse{
		Catchment: name,
		File:      path,
		Columns:   table.Columns(),
		Records:   records,
	})
}

type simulationResponse struct {
	Catchment    string               `json:"catchment"`
	Model        string               `json:"model"`
	SpinUpCycles int                  `json:"spinup_cycles"`
	Results      []domain.DailyResult `json:"results"`
}

func (s *Server) handleSimulation(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	exec, err := hydromodel.Lookup(r.PathValue("model"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_, table, err := s.load(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	results := []domain.DailyResult{}
	if table.Len() > 0 {
		params, err := hydromodel.Params(name, exec.Name())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		_, results, err = pipeline.Simulate(r.Context(), exec, params, name, table, s.spinUp)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	sharedobs.WriteJSON(w, http.StatusOK, simulationResponse{
		Catchment:    name,
		Model:        exec.Name(),
		SpinUpCycles: s.spinUp,
		Results:      results,
	})
}

func (s *Server) load(ctx context.Context, name string) (string, domain.CatchmentTable, error) {
	path, err := s.catalog.Resolve(ctx, name)
	if err != nil {
		return "", domain.CatchmentTable{}, err
	}
	table, err := s.catalog.Normalize(path)
	if err != nil {
		return "", domain.CatchmentTable{}, err
	}
	return path, table, nil
}

// statusFor maps domain and model errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, hydromodel.ErrUnknownModel):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSchema), errors.Is(err, domain.ErrParse):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
