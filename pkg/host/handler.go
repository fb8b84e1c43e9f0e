package host

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aretw0/yol"
	"github.com/aretw0/yol/internal/logging"
	"github.com/aretw0/yol/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the view of a yol.Registry the handler needs.
type Registry interface {
	Runners() []*yol.Runner
	Lookup(name string) (*yol.Runner, bool)
}

// RunnerStatus is the JSON view of a runner.
type RunnerStatus struct {
	Name      string           `json:"name"`
	Key       string           `json:"key"`
	Status    domain.RunStatus `json:"status"`
	State     string           `json:"state"`
	Terminal  string           `json:"terminal,omitempty"`
	Applied   []string         `json:"applied,omitempty"`
	LastError string           `json:"last_error,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Server serves the status of a registry.
type Server struct {
	Registry Registry
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// HandlerOption configures the handler.
type HandlerOption func(*Server)

// WithGatherer exposes the metrics of g at /metrics.
func WithGatherer(g prometheus.Gatherer) HandlerOption {
	return func(s *Server) {
		s.Gatherer = g
	}
}

// WithLogger sets the logger of the handler.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(s *Server) {
		s.Logger = logger
	}
}

// NewHandler creates a read-only HTTP handler over the runners of registry.
func NewHandler(registry Registry, opts ...HandlerOption) http.Handler {
	server := &Server{
		Registry: registry,
		Logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Get("/health", server.GetHealth)
	r.Get("/runners", server.ListRunners)
	r.Get("/runners/{name}", server.GetRunner)
	r.Get("/runners/{name}/graph", server.GetGraph)
	if server.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(server.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListRunners handles the GET /runners request.
func (s *Server) ListRunners(w http.ResponseWriter, r *http.Request) {
	runners := s.Registry.Runners()
	resp := make([]RunnerStatus, 0, len(runners))
	for _, runner := range runners {
		resp = append(resp, s.status(r, runner))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// GetRunner handles the GET /runners/{name} request.
func (s *Server) GetRunner(w http.ResponseWriter, r *http.Request) {
	runner, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.status(r, runner))
}

// GetGraph handles the GET /runners/{name}/graph request.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	runner, ok := s.lookup(w, r)
	if !ok {
		return
	}

	chart, err := runner.Mermaid(r.Context())
	if err != nil {
		s.Logger.Error("Could not render graph", "runner", runner.Name(), "err", err)
		http.Error(w, "could not read state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/vnd.mermaid; charset=utf-8")
	_, _ = w.Write([]byte(chart))
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*yol.Runner, bool) {
	name := chi.URLParam(r, "name")
	runner, ok := s.Registry.Lookup(name)
	if !ok {
		http.Error(w, "runner not found", http.StatusNotFound)
	}
	return runner, ok
}

func (s *Server) status(r *http.Request, runner *yol.Runner) RunnerStatus {
	st := RunnerStatus{
		Name:   runner.Name(),
		Key:    runner.Key(),
		Status: runner.Status(),
	}

	if terminal, err := runner.Terminal(); err == nil {
		st.Terminal = terminal
	} else {
		st.Error = err.Error()
	}

	if state, err := runner.CurrentState(r.Context()); err == nil {
		st.State = state
	} else {
		st.Error = err.Error()
	}

	if report, ok := runner.LastReport(); ok {
		st.Applied = report.Applied
		if report.Err != nil {
			st.LastError = report.Err.Error()
		}
	}
	return st
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("Response encode failed", "err", err)
	}
}
