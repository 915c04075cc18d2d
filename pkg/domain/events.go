package domain

import (
	"context"
	"time"
)

// RunEvent is emitted by the orchestrator as a run advances.
type RunEvent struct {
	Timestamp time.Time             `json:"timestamp"`
	RunID     string                `json:"run_id"`
	GraphID   int64                 `json:"graph_id"`
	Status    RunStatus             `json:"status"`
	Poll      int                   `json:"poll"`
	Nodes     map[string]NodeStatus `json:"nodes,omitempty"`
	Err       error                 `json:"-"`
}

// RunHooks defines callbacks for execution observers (toolbar, chat panel, log panel).
type RunHooks struct {
	OnSubmit    func(context.Context, *RunEvent)
	OnStatus    func(context.Context, *RunEvent)
	OnTerminal  func(context.Context, *RunEvent)
	OnPollError func(context.Context, *RunEvent)
	OnStopped   func(context.Context, *RunEvent)
}

// SessionEventType defines the category of an edit session event.
type SessionEventType string

const (
	SessionLoaded     SessionEventType = "loaded"
	SessionChanged    SessionEventType = "changed"
	SessionSaved      SessionEventType = "saved"
	SessionSaveFailed SessionEventType = "save_failed"
	SessionOrphanEdge SessionEventType = "orphan_edge"
)

// SessionEvent is emitted by an edit session.
type SessionEvent struct {
	Timestamp  time.Time        `json:"timestamp"`
	Type       SessionEventType `json:"type"`
	WorkflowID int64            `json:"workflow_id"`
	Op         string           `json:"op,omitempty"`
	Dirty      bool             `json:"dirty"`
	Err        error            `json:"-"`
}

// SessionHooks defines callbacks for edit session observers.
type SessionHooks struct {
	OnLoad       func(*SessionEvent)
	OnChange     func(*SessionEvent)
	OnSave       func(*SessionEvent)
	OnSaveError  func(*SessionEvent)
	OnOrphanEdge func(*SessionEvent)
}
