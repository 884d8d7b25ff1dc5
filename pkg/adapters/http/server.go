// Package http exposes a quorum engine over a JSON HTTP API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/quorum/internal/logging"
	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/flow"
	"github.com/aretw0/quorum/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Engine is the part of quorum.Engine the API needs.
type Engine interface {
	RunFlow(ctx context.Context, flowID, version, instanceID string, fields map[string]any) (*domain.ExecutionResult, error)
	GetTrace(ctx context.Context, instanceID string) (*domain.ExecutionResult, error)
	SaveFlow(ctx context.Context, data []byte, format flow.Format) (*flow.Graph, error)
	LoadFlow(ctx context.Context, flowID, version string) ([]byte, flow.Format, error)
	ListFlows(ctx context.Context) ([]ports.FlowRef, error)
	Assessments(ctx context.Context, instanceID string) ([]domain.AssessmentRecord, error)
}

// Server holds the handlers.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	logger  *slog.Logger
	metrics http.Handler
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsHandler mounts h at /metrics, typically promhttp.HandlerFor.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// RunRequest is the body of POST /flows/{flowID}/{version}/runs.
type RunRequest struct {
	InstanceID string         `json:"instance_id,omitempty"`
	Context    map[string]any `json:"context"`
}

// SaveFlowResponse acknowledges a stored flow.
type SaveFlowResponse struct {
	FlowID  string `json:"flow_id"`
	Version string `json:"version"`
	Nodes   int    `json:"nodes"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error      string             `json:"error"`
	Kind       domain.ErrorKind   `json:"kind,omitempty"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

// NewHandler creates the HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:  engine,
		Streams: NewStreamManager(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/flows", s.ListFlows)
	r.Post("/flows", s.SaveFlow)
	r.Get("/flows/{flowID}/{version}", s.GetFlow)
	r.Post("/flows/{flowID}/{version}/runs", s.RunFlow)
	r.Get("/runs/{instanceID}", s.GetRun)
	r.Get("/runs/{instanceID}/assessments", s.ListAssessments)
	r.Get("/assessments", s.ListAssessments)
	r.Get("/events", s.SubscribeEvents)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListFlows handles GET /flows.
func (s *Server) ListFlows(w http.ResponseWriter, r *http.Request) {
	refs, err := s.Engine.ListFlows(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, refs)
}

// SaveFlow handles POST /flows. The format comes from the Content-Type
// header and defaults to JSON.
func (s *Server) SaveFlow(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	g, err := s.Engine.SaveFlow(r.Context(), data, formatOf(r.Header.Get("Content-Type")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, SaveFlowResponse{FlowID: g.FlowID(), Version: g.Version(), Nodes: g.Len()})
}

// GetFlow handles GET /flows/{flowID}/{version} and returns the stored document as saved.
func (s *Server) GetFlow(w http.ResponseWriter, r *http.Request) {
	data, format, err := s.Engine.LoadFlow(r.Context(), chi.URLParam(r, "flowID"), chi.URLParam(r, "version"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType(format))
	_, _ = w.Write(data)
}

// RunFlow handles POST /flows/{flowID}/{version}/runs.
// A completed run answers 200 and a failed run 422, both with the full result.
func (s *Server) RunFlow(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		s.logger.Warn("RunFlow: invalid request body", "error", err)
		return
	}

	res, err := s.Engine.RunFlow(r.Context(), chi.URLParam(r, "flowID"), chi.URLParam(r, "version"), body.InstanceID, body.Context)
	if err != nil && res == nil {
		s.writeError(w, r, err)
		return
	}
	if err != nil {
		// The run finished but its trace was not stored.
		s.logger.Error("RunFlow: trace not persisted", "instance_id", res.InstanceID, "error", err)
	}

	if payload, merr := json.Marshal(res); merr == nil {
		s.Streams.Broadcast(res.InstanceID, string(payload))
	}

	status := http.StatusOK
	if res.Status == domain.StatusFailed {
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, status, res)
}

// GetRun handles GET /runs/{instanceID}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	res, err := s.Engine.GetTrace(r.Context(), chi.URLParam(r, "instanceID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// ListAssessments handles GET /assessments and GET /runs/{instanceID}/assessments.
func (s *Server) ListAssessments(w http.ResponseWriter, r *http.Request) {
	recs, err := s.Engine.Assessments(r.Context(), chi.URLParam(r, "instanceID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, recs)
}

// statusOf maps an engine error to an HTTP status.
func statusOf(err error) int {
	var verr *domain.GraphValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTraceNotFound), errors.Is(err, domain.ErrFlowNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInstanceExists):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	resp := ErrorResponse{Error: err.Error()}

	var verr *domain.GraphValidationError
	if errors.As(err, &verr) {
		resp.Kind = domain.KindValidation
		resp.Violations = verr.Violations
	} else if status == http.StatusNotFound {
		resp.Kind = domain.KindNotFound
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func formatOf(contentType string) flow.Format {
	switch mediaType(contentType) {
	case "application/yaml", "application/x-yaml", "text/yaml":
		return flow.FormatYAML
	case "application/hcl", "text/hcl":
		return flow.FormatHCL
	default:
		return flow.FormatJSON
	}
}

func contentType(f flow.Format) string {
	switch f {
	case flow.FormatYAML:
		return "application/yaml"
	case flow.FormatHCL:
		return "application/hcl"
	default:
		return "application/json"
	}
}
