package ports

import (
	"context"

	"github.com/aretw0/flowdeck/pkg/domain"
)

// NodeTypeSource provides the node type catalog.
type NodeTypeSource interface {
	NodeTypes(ctx context.Context) ([]domain.NodeTypeDefinition, error)
}

// WorkflowReader is the read side of the workflow backend.
type WorkflowReader interface {
	ListWorkflows(ctx context.Context) ([]domain.GraphSummary, error)
	// GetWorkflow returns domain.ErrWorkflowNotFound (possibly wrapped) for unknown ids.
	GetWorkflow(ctx context.Context, id int64) (*domain.PersistedGraph, error)
	GetWorkflowMetadata(ctx context.Context, id int64) (*domain.GraphSummary, error)
}

// WorkflowWriter persists change sets. Entities missing from the payload are deleted.
type WorkflowWriter interface {
	CreateWorkflow(ctx context.Context, payload domain.WorkflowSavePayload) (*domain.SaveResult, error)
	UpdateWorkflow(ctx context.Context, id int64, payload domain.WorkflowSavePayload) (*domain.SaveResult, error)
	DeleteWorkflow(ctx context.Context, id int64) (*domain.DeleteResult, error)
}

// ExecutionAPI launches runs and reports their progress.
// Status reports the most recent run of the graph; the backend has no run id.
type ExecutionAPI interface {
	Execute(ctx context.Context, id int64, inputs map[string]any) (*domain.ExecuteResponse, error)
	Status(ctx context.Context, id int64) (*domain.WorkflowStatus, error)
	NodeStatus(ctx context.Context, id int64, nodeID string) (*domain.NodeStatus, error)
}

// WorkflowAPI is the full remote workflow backend.
// Implementations must be safe for concurrent use.
type WorkflowAPI interface {
	NodeTypeSource
	WorkflowReader
	WorkflowWriter
	ExecutionAPI
}
