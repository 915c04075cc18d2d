package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/flowdeck"
	"github.com/aretw0/flowdeck/internal/logging"
	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/orchestrator"
	"github.com/aretw0/flowdeck/pkg/ports"
	"github.com/go-chi/chi/v5"
)

// Server exposes a ports.WorkflowAPI over the same routes the Client calls.
type Server struct {
	API     ports.WorkflowAPI
	Streams *StreamManager
	// Orch, when set, tracks every submitted run: it polls the backend and its hooks
	// decide what gets published.
	Orch   *orchestrator.Orchestrator
	logger *slog.Logger
}

// HandlerOption configures the Server.
type HandlerOption func(*Server)

// WithHandlerLogger configures the structured logger.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStreams shares a StreamManager, e.g. with an orchestrator publishing run events.
func WithStreams(sm *StreamManager) HandlerOption {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithOrchestrator submits runs through an orchestrator instead of calling the backend directly.
func WithOrchestrator(o *orchestrator.Orchestrator) HandlerOption {
	return func(s *Server) {
		s.Orch = o
	}
}

// NewHandler creates an HTTP handler for the backend. Mount it under the API prefix
// (e.g. /api/v1).
func NewHandler(api ports.WorkflowAPI, opts ...HandlerOption) http.Handler {
	s := &Server{
		API:    api,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Route("/workflows", func(r chi.Router) {
		r.Get("/", s.ListWorkflows)
		r.Post("/", s.CreateWorkflow)
		r.Get("/node-types/", s.NodeTypes)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetWorkflow)
			r.Put("/", s.UpdateWorkflow)
			r.Delete("/", s.DeleteWorkflow)
			r.Get("/metadata", s.GetWorkflowMetadata)
			r.Post("/execute", s.Execute)
			r.Get("/status", s.Status)
			r.Get("/nodes/{nodeID}/status", s.NodeStatus)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "flowdeck-http",
		"version": strings.TrimSpace(flowdeck.Version),
	})
}

// NodeTypes handles GET /workflows/node-types/.
func (s *Server) NodeTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.API.NodeTypes(r.Context())
	if err != nil {
		s.writeError(w, "NodeTypes", err)
		return
	}
	s.writeJSON(w, http.StatusOK, types)
}

// ListWorkflows handles GET /workflows/.
func (s *Server) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	list, err := s.API.ListWorkflows(r.Context())
	if err != nil {
		s.writeError(w, "ListWorkflows", err)
		return
	}
	if list == nil {
		list = []domain.GraphSummary{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

// GetWorkflow handles GET /workflows/{id}.
func (s *Server) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.graphID(w, r)
	if !ok {
		return
	}
	g, err := s.API.GetWorkflow(r.Context(), id)
	if err != nil {
		s.writeError(w, "GetWorkflow", err)
		return
	}
	detail := domain.WorkflowDetail{Graph: g.GraphSummary, Vertices: g.Vertices, Edges: g.Edges}
	if detail.Vertices == nil {
		detail.Vertices = []domain.PersistedVertex{}
	}
	if detail.Edges == nil {
		detail.Edges = []domain.PersistedEdge{}
	}
	s.writeJSON(w, http.StatusOK, detail)
}

// GetWorkflowMetadata handles GET /workflows/{id}/metadata.
func (s *Server) GetWorkflowMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := s.graphID(w, r)
	if !ok {
		return
	}
	meta, err := s.API.GetWorkflowMetadata(r.Context(), id)
	if err != nil {
		s.writeError(w, "GetWorkflowMetadata", err)
		return
	}
	s.writeJSON(w, http.StatusOK, meta)
}

// CreateWorkflow handles POST /workflows/.
func (s *Server) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var body domain.WorkflowSavePayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("CreateWorkflow: Invalid request body", "err", err)
		return
	}
	res, err := s.API.CreateWorkflow(r.Context(), body)
	if err != nil {
		s.writeError(w, "CreateWorkflow", err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// UpdateWorkflow handles PUT /workflows/{id}.
func (s *Server) UpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.graphID(w, r)
	if !ok {
		return
	}
	var body domain.WorkflowSavePayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("UpdateWorkflow: Invalid request body", "err", err)
		return
	}
	res, err := s.API.UpdateWorkflow(r.Context(), id, body)
	if err != nil {
		s.writeError(w, "UpdateWorkflow", err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// DeleteWorkflow handles DELETE /workflows/{id}.
func (s *Server) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.graphID(w, r)
	if !ok {
		return
	}
	res, err := s.API.DeleteWorkflow(r.Context(), id)
	if err != nil {
		s.writeError(w, "DeleteWorkflow", err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// Execute handles POST /workflows/{id}/execute.
func (s *Server) Execute(w http.ResponseWriter, r *http.Request) {
	id, ok := s.graphID(w, r)
	if !ok {
		return
	}
	var body domain.ExecuteRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			s.logger.Warn("Execute: Invalid request body", "err", err)
			return
		}
	}
	if s.Orch != nil {
		s.executeTracked(w, r, id, body.InitialInputs)
		return
	}
	res, err := s.API.Execute(r.Context(), id, body.InitialInputs)
	if err != nil {
		s.writeError(w, "Execute", err)
		return
	}
	status := domain.RunPending
	if !res.Success {
		status = domain.RunFailed
	}
	s.Streams.Publish(id, &domain.RunEvent{GraphID: id, Status: status})
	s.writeJSON(w, http.StatusOK, res)
}

// executeTracked submits through the orchestrator. The run id is returned in the
// X-Run-Id header; progress is streamed on /events.
func (s *Server) executeTracked(w http.ResponseWriter, r *http.Request, id int64, inputs map[string]any) {
	run, err := s.Orch.Execute(r.Context(), id, inputs)
	var submitErr *domain.SubmitError
	if errors.As(err, &submitErr) && submitErr.Cause != nil {
		s.writeError(w, "Execute", submitErr.Cause)
		return
	}
	snap := run.Snapshot()
	w.Header().Set("X-Run-Id", snap.ID)
	s.writeJSON(w, http.StatusOK, domain.ExecuteResponse{
		Success:        err == nil,
		Result:         snap.Result,
		Errors:         snap.Errors,
		ExecutionOrder: snap.ExecutionOrder,
		ExecutionTime:  snap.ExecutionTime,
	})
}

// Status handles GET /workflows/{id}/status.
func (s *Server) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := s.graphID(w, r)
	if !ok {
		return
	}
	st, err := s.API.Status(r.Context(), id)
	if err != nil {
		s.writeError(w, "Status", err)
		return
	}
	s.Streams.Publish(id, &domain.RunEvent{GraphID: id, Status: st.Status, Nodes: st.Nodes})
	s.writeJSON(w, http.StatusOK, st)
}

// NodeStatus handles GET /workflows/{id}/nodes/{nodeID}/status.
func (s *Server) NodeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := s.graphID(w, r)
	if !ok {
		return
	}
	ns, err := s.API.NodeStatus(r.Context(), id, chi.URLParam(r, "nodeID"))
	if err != nil {
		s.writeError(w, "NodeStatus", err)
		return
	}
	s.writeJSON(w, http.StatusOK, ns)
}

func (s *Server) graphID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid workflow id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

// writeError maps domain errors to status codes with a {"detail": ...} body.
func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrWorkflowNotFound), errors.Is(err, domain.ErrNodeNotFound):
		status = http.StatusNotFound
	default:
		var fetchErr *domain.FetchError
		if errors.As(err, &fetchErr) {
			status = http.StatusBadGateway
		}
	}
	if status == http.StatusInternalServerError {
		s.logger.Error(fmt.Sprintf("%s failed", op), "err", err)
	} else {
		s.logger.Debug(fmt.Sprintf("%s failed", op), "status", status, "err", err)
	}
	s.writeJSON(w, status, map[string]string{"detail": err.Error()})
}
