package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/flowdeck/internal/logging"
	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/ports"
)

// DefaultBaseURL is the backend the editor talks to when nothing else is configured.
const DefaultBaseURL = "http://localhost:8000/api/v1"

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

var _ ports.WorkflowAPI = (*Client)(nil)

// Client implements ports.WorkflowAPI over HTTP. Every failure is a *domain.FetchError.
// Requests are never retried.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the API rooted at baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// NodeTypes fetches the node type catalog.
func (c *Client) NodeTypes(ctx context.Context) ([]domain.NodeTypeDefinition, error) {
	var out []domain.NodeTypeDefinition
	if err := c.do(ctx, http.MethodGet, "/workflows/node-types/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListWorkflows fetches the workflow summaries.
func (c *Client) ListWorkflows(ctx context.Context) ([]domain.GraphSummary, error) {
	var out []domain.GraphSummary
	if err := c.do(ctx, http.MethodGet, "/workflows/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetWorkflow fetches a workflow with its vertices and edges.
func (c *Client) GetWorkflow(ctx context.Context, id int64) (*domain.PersistedGraph, error) {
	var out domain.WorkflowDetail
	if err := c.do(ctx, http.MethodGet, workflowPath(id, ""), nil, &out); err != nil {
		return nil, err
	}
	return out.ToGraph(), nil
}

// GetWorkflowMetadata fetches the summary of a workflow.
func (c *Client) GetWorkflowMetadata(ctx context.Context, id int64) (*domain.GraphSummary, error) {
	var out domain.GraphSummary
	if err := c.do(ctx, http.MethodGet, workflowPath(id, "/metadata"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateWorkflow posts a new workflow.
func (c *Client) CreateWorkflow(ctx context.Context, payload domain.WorkflowSavePayload) (*domain.SaveResult, error) {
	var out domain.SaveResult
	if err := c.do(ctx, http.MethodPost, "/workflows/", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateWorkflow replaces a workflow's content.
func (c *Client) UpdateWorkflow(ctx context.Context, id int64, payload domain.WorkflowSavePayload) (*domain.SaveResult, error) {
	var out domain.SaveResult
	if err := c.do(ctx, http.MethodPut, workflowPath(id, ""), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteWorkflow deletes a workflow.
func (c *Client) DeleteWorkflow(ctx context.Context, id int64) (*domain.DeleteResult, error) {
	var out domain.DeleteResult
	if err := c.do(ctx, http.MethodDelete, workflowPath(id, ""), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Execute submits a run.
func (c *Client) Execute(ctx context.Context, id int64, inputs map[string]any) (*domain.ExecuteResponse, error) {
	if inputs == nil {
		inputs = map[string]any{}
	}
	var out domain.ExecuteResponse
	if err := c.do(ctx, http.MethodPost, workflowPath(id, "/execute"), domain.ExecuteRequest{InitialInputs: inputs}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches the status of the graph's latest run.
func (c *Client) Status(ctx context.Context, id int64) (*domain.WorkflowStatus, error) {
	var out domain.WorkflowStatus
	if err := c.do(ctx, http.MethodGet, workflowPath(id, "/status"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// NodeStatus fetches one node of the graph's latest run.
func (c *Client) NodeStatus(ctx context.Context, id int64, nodeID string) (*domain.NodeStatus, error) {
	var out domain.NodeStatus
	if err := c.do(ctx, http.MethodGet, workflowPath(id, "/nodes/"+url.PathEscape(nodeID)+"/status"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func workflowPath(id int64, suffix string) string {
	return "/workflows/" + strconv.FormatInt(id, 10) + suffix
}

// do sends one request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	endpoint := method + " " + path
	fail := func(status int, cause error) error {
		c.logger.Debug("backend request failed", "endpoint", endpoint, "status", status, "err", cause)
		return &domain.FetchError{Endpoint: endpoint, Status: status, Cause: cause}
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fail(0, fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(resp.StatusCode, fmt.Errorf("read response: %w", err))
	}
	c.logger.Debug("backend request", "endpoint", endpoint, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		notFound := domain.ErrWorkflowNotFound
		if strings.Contains(path, "/nodes/") {
			notFound = domain.ErrNodeNotFound
		}
		return fail(resp.StatusCode, responseError(resp.StatusCode, data, notFound))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// responseError extracts the backend's message from an error body. Not-found responses
// wrap notFound.
func responseError(status int, body []byte, notFound error) error {
	var detail struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &detail) == nil {
		switch {
		case detail.Detail != nil:
			msg = fmt.Sprint(detail.Detail)
		case detail.Message != "":
			msg = detail.Message
		case detail.Error != "":
			msg = detail.Error
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%s: %w", msg, notFound)
	}
	return errors.New(msg)
}
