package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/flowdeck"
	"github.com/aretw0/flowdeck/internal/logging"
	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/orchestrator"
	"github.com/aretw0/flowdeck/pkg/ports"
	"github.com/aretw0/flowdeck/pkg/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// DefaultWait bounds how long execute_workflow waits for a terminal status.
const DefaultWait = 30 * time.Second

// NodeTypesURI is the resource exposing the node type catalog.
const NodeTypesURI = "flowdeck://node-types"

// NodeType is a catalog entry with the config fields the editor validates for it.
type NodeType struct {
	domain.NodeTypeDefinition
	ConfigSchema schema.Schema `json:"config_schema,omitempty"`
}

// WorkflowArgs identifies a workflow.
type WorkflowArgs struct {
	WorkflowID int64 `json:"workflow_id"`
}

// ExecuteArgs are the arguments of execute_workflow.
type ExecuteArgs struct {
	WorkflowID int64  `json:"workflow_id"`
	Message    string `json:"message"`
	// WaitSeconds caps the wait for a terminal status. Zero uses DefaultWait, negative returns
	// right after submission.
	WaitSeconds float64 `json:"wait_seconds"`
}

// RunResponse is the structured result of execute_workflow.
type RunResponse struct {
	Run      domain.ExecutionRun `json:"run" jsonschema_description:"Snapshot of the run"`
	Finished bool                `json:"finished" jsonschema_description:"Whether the run reached a final status"`
	Error    string              `json:"error,omitempty" jsonschema_description:"Why polling stopped, if it failed"`
}

// Server exposes a workflow backend as an MCP server.
type Server struct {
	api       ports.WorkflowAPI
	orch      *orchestrator.Orchestrator
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithOrchestrator shares an orchestrator, e.g. one wired with metrics hooks.
func WithOrchestrator(o *orchestrator.Orchestrator) Option {
	return func(s *Server) {
		s.orch = o
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(api ports.WorkflowAPI, opts ...Option) *Server {
	s := &Server{
		api:       api,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("flowdeck-mcp", strings.TrimSpace(flowdeck.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.orch == nil {
		s.orch = orchestrator.New(api, orchestrator.WithLogger(s.logger))
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down MCP server")
		s.orch.CancelAll()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_workflows",
		mcp.WithDescription("List the workflows stored in the backend."),
	), s.handleListWorkflows)

	s.mcpServer.AddTool(mcp.NewTool("list_node_types",
		mcp.WithDescription("List the node types that can be placed on a workflow, with their ports and config fields."),
	), s.handleListNodeTypes)

	s.mcpServer.AddTool(mcp.NewTool("get_workflow",
		mcp.WithDescription("Get a workflow with its vertices and edges."),
		mcp.WithNumber("workflow_id", mcp.Required(), mcp.Description("Workflow id")),
	), mcp.NewStructuredToolHandler(s.handleGetWorkflow))

	s.mcpServer.AddTool(mcp.NewTool("execute_workflow",
		mcp.WithDescription("Run a saved workflow with a chat message and wait for it to finish."),
		mcp.WithNumber("workflow_id", mcp.Required(), mcp.Description("Workflow id")),
		mcp.WithString("message", mcp.Description("Chat message passed as test_data")),
		mcp.WithNumber("wait_seconds", mcp.Description("Maximum wait for a final status; negative returns immediately")),
		mcp.WithOutputSchema[RunResponse](),
	), mcp.NewStructuredToolHandler(s.handleExecute))

	s.mcpServer.AddTool(mcp.NewTool("workflow_status",
		mcp.WithDescription("Get the status of the latest run of a workflow."),
		mcp.WithNumber("workflow_id", mcp.Required(), mcp.Description("Workflow id")),
	), mcp.NewStructuredToolHandler(s.handleStatus))
}

func (s *Server) handleListWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.api.ListWorkflows(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	jsonBytes, _ := json.Marshal(list)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) catalog(ctx context.Context) ([]NodeType, error) {
	defs, err := s.api.NodeTypes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]NodeType, len(defs))
	for i, def := range defs {
		out[i] = NodeType{NodeTypeDefinition: def, ConfigSchema: schema.ForNodeType(def.Type)}
	}
	return out, nil
}

func (s *Server) handleListNodeTypes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	types, err := s.catalog(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("node types failed: %v", err)), nil
	}
	jsonBytes, _ := json.Marshal(types)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGetWorkflow(ctx context.Context, request mcp.CallToolRequest, args WorkflowArgs) (*domain.PersistedGraph, error) {
	if args.WorkflowID <= 0 {
		return nil, fmt.Errorf("workflow_id must be positive")
	}
	return s.api.GetWorkflow(ctx, args.WorkflowID)
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest, args WorkflowArgs) (*domain.WorkflowStatus, error) {
	if args.WorkflowID <= 0 {
		return nil, fmt.Errorf("workflow_id must be positive")
	}
	return s.api.Status(ctx, args.WorkflowID)
}

func (s *Server) handleExecute(ctx context.Context, request mcp.CallToolRequest, args ExecuteArgs) (RunResponse, error) {
	if args.WorkflowID <= 0 {
		return RunResponse{}, fmt.Errorf("workflow_id must be positive")
	}

	run, err := s.orch.Execute(ctx, args.WorkflowID, orchestrator.ChatInputs(args.Message))
	if err != nil {
		var submitErr *domain.SubmitError
		if errors.As(err, &submitErr) && run != nil {
			return RunResponse{Run: run.Snapshot(), Finished: true, Error: err.Error()}, nil
		}
		return RunResponse{}, err
	}
	if args.WaitSeconds < 0 {
		return RunResponse{Run: run.Snapshot()}, nil
	}

	wait := DefaultWait
	if args.WaitSeconds > 0 {
		wait = time.Duration(args.WaitSeconds * float64(time.Second))
	}
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	snap, err := run.Wait(waitCtx)
	resp := RunResponse{Run: snap, Finished: snap.Status.IsFinal()}
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.Debug("MCP execute: still running", "run_id", snap.ID, "graph_id", snap.GraphID)
	default:
		resp.Error = err.Error()
	}
	return resp, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(NodeTypesURI, "Node Type Catalog",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		types, err := s.catalog(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load node types: %w", err)
		}
		jsonBytes, _ := json.Marshal(types)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      NodeTypesURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
