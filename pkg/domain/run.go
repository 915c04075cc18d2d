package domain

import "time"

// RunStatus is the state of an execution run as seen by the client.
type RunStatus string

const (
	RunIdle       RunStatus = "idle"
	RunSubmitting RunStatus = "submitting"
	RunPending    RunStatus = "pending"
	RunRunning    RunStatus = "running"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
	RunCancelled  RunStatus = "cancelled"

	// RunPollError means polling stopped on a transport failure. The remote status is unknown.
	RunPollError RunStatus = "poll_error"
	// RunStopped means the client stopped polling. The remote run may still be executing.
	RunStopped RunStatus = "stopped"
)

// IsTerminal reports whether the backend will not advance the run any further.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled:
		return true
	}
	return false
}

// IsFinal reports whether the client will not poll again, terminal or not.
func (s RunStatus) IsFinal() bool {
	return s.IsTerminal() || s == RunPollError || s == RunStopped
}

// NodeRunStatus is the per-node state reported by the status endpoint.
type NodeRunStatus string

const (
	NodePending   NodeRunStatus = "pending"
	NodeRunning   NodeRunStatus = "running"
	NodeCompleted NodeRunStatus = "completed"
	NodeFailed    NodeRunStatus = "failed"
	NodeSkipped   NodeRunStatus = "skipped"
)

// NodeStatus is one node's progress inside a run.
type NodeStatus struct {
	NodeID       string         `json:"node_id"`
	Status       NodeRunStatus  `json:"status"`
	InputData    map[string]any `json:"input_data,omitempty"`
	OutputData   map[string]any `json:"output_data,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// WorkflowStatus is the wire shape of GET /workflows/{id}/status.
type WorkflowStatus struct {
	GraphID int64                 `json:"graph_id"`
	Status  RunStatus             `json:"status"`
	Nodes   map[string]NodeStatus `json:"nodes,omitempty"`
}

// ExecuteRequest is the body of POST /workflows/{id}/execute.
type ExecuteRequest struct {
	InitialInputs map[string]any `json:"initial_inputs"`
}

// ExecuteResponse is returned by the submit call.
type ExecuteResponse struct {
	Success        bool           `json:"success"`
	Result         map[string]any `json:"result,omitempty"`
	Errors         []string       `json:"errors,omitempty"`
	ExecutionOrder []string       `json:"execution_order,omitempty"`
	ExecutionTime  float64        `json:"execution_time,omitempty"`
	StartTime      string         `json:"start_time,omitempty"`
	EndTime        string         `json:"end_time,omitempty"`
}

// ExecutionRun is one execution attempt of a saved graph.
type ExecutionRun struct {
	ID             string                `json:"id"`
	GraphID        int64                 `json:"graph_id"`
	Status         RunStatus             `json:"status"`
	Result         map[string]any        `json:"result,omitempty"`
	Errors         []string              `json:"errors,omitempty"`
	ExecutionOrder []string              `json:"execution_order,omitempty"`
	ExecutionTime  float64               `json:"execution_time,omitempty"`
	Nodes          map[string]NodeStatus `json:"nodes,omitempty"`
	Polls          int                   `json:"polls"`
	SubmittedAt    time.Time             `json:"submitted_at"`
	FinishedAt     time.Time             `json:"finished_at,omitempty"`
}
