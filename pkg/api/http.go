// Package api serves a read-only HTTP view of the cluster definition, the
// formation history and the process metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/meftunca/rmqcluster/pkg/cluster"
	"github.com/meftunca/rmqcluster/pkg/config"
	"github.com/meftunca/rmqcluster/pkg/json"
	"github.com/meftunca/rmqcluster/pkg/metrics"
	"github.com/meftunca/rmqcluster/pkg/storage"
	"github.com/meftunca/rmqcluster/pkg/types"
	"github.com/meftunca/rmqcluster/pkg/version"
)

const defaultRunLimit = 20

// HTTPServer provides the status endpoints
type HTTPServer struct {
	server  *http.Server
	router  *mux.Router
	store   storage.RunStore
	topo    *cluster.Topology
	metrics *metrics.FormationMetrics
	enc     json.Encoder
	started time.Time
	log     logrus.FieldLogger
}

// NewHTTPServer creates the status server. m may be nil, in which case no
// metrics endpoint is served.
func NewHTTPServer(cfg config.MonitoringConfig, store storage.RunStore, topo *cluster.Topology, m *metrics.FormationMetrics, enc json.Encoder, log logrus.FieldLogger) *HTTPServer {
	s := &HTTPServer{
		router:  mux.NewRouter(),
		store:   store,
		topo:    topo,
		metrics: m,
		enc:     enc,
		started: time.Now(),
		log:     log.WithField("type", "api/http"),
	}

	s.setupRoutes(cfg.MetricsPath)

	s.server = &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures API routes
func (s *HTTPServer) setupRoutes(metricsPath string) {
	if s.metrics != nil {
		s.router.Use(s.metrics.MetricsMiddleware)
		s.router.Handle(metricsPath, s.metrics.GetHTTPHandler()).Methods(http.MethodGet)
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)
	s.router.HandleFunc("/topology", s.handleTopology).Methods(http.MethodGet)
	s.router.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/{id}", s.handleRun).Methods(http.MethodGet)
}

// Handler returns the routed handler, for tests and embedding
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Start serves until Stop is called
func (s *HTTPServer) Start() error {
	s.log.WithField("address", s.server.Addr).Info("starting status server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server gracefully
func (s *HTTPServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Version: version.GetVersionInfo(),
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Storage: "ok",
	}

	status := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Storage = err.Error()
		status = http.StatusServiceUnavailable
	}

	s.sendResponse(w, status, resp)
}

func (s *HTTPServer) handleVersion(w http.ResponseWriter, _ *http.Request) {
	s.sendResponse(w, http.StatusOK, version.GetVersionInfo())
}

func (s *HTTPServer) handleTopology(w http.ResponseWriter, _ *http.Request) {
	s.sendResponse(w, http.StatusOK, TopologyResponse{
		Seed:        s.topo.Seed(),
		DiscNodes:   s.topo.DiscNodes(),
		RamNodes:    s.topo.RamNodes(),
		JoinTargets: s.topo.JoinTargets(),
	})
}

func (s *HTTPServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.sendError(w, http.StatusBadRequest, types.ErrInvalidConfig("limit", "must be a non-negative integer"))
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]RunSummary, len(runs))
	for i, run := range runs {
		out[i] = newRunSummary(run)
	}
	s.sendResponse(w, http.StatusOK, out)
}

func (s *HTTPServer) handleRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.sendError(w, http.StatusBadRequest, types.ErrInvalidConfig("id", "not a run id"))
		return
	}

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, types.ErrRunNotFound("")) {
			status = http.StatusNotFound
		}
		s.sendError(w, status, err)
		return
	}

	s.sendResponse(w, http.StatusOK, run)
}

// sendResponse sends a successful JSON response
func (s *HTTPServer) sendResponse(w http.ResponseWriter, status int, data interface{}) {
	s.write(w, status, APIResponse{
		Success:   status < http.StatusBadRequest,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// sendError sends an error JSON response
func (s *HTTPServer) sendError(w http.ResponseWriter, status int, err error) {
	resp := APIResponse{
		Success:   false,
		Error:     err.Error(),
		Timestamp: time.Now(),
	}

	var ce *types.ClusterError
	if errors.As(err, &ce) {
		resp.Code = string(ce.Code)
	}
	if s.metrics != nil {
		s.metrics.RecordError(resp.Code, "api")
	}

	s.write(w, status, resp)
}

func (s *HTTPServer) write(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := s.enc.Write(w, resp); err != nil {
		s.log.WithError(err).Warn("failed to encode response")
	}
}
