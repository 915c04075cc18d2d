package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNodeNotFound is returned when a mutation references a node that is not in the visual graph.
var ErrNodeNotFound = errors.New("node not found")

// ErrEdgeNotFound is returned when a mutation references an edge that is not in the visual graph.
var ErrEdgeNotFound = errors.New("edge not found")

// ErrSaveInProgress is returned when a save is attempted while another one is in flight.
var ErrSaveInProgress = errors.New("save already in progress")

// ErrRegistryNotLoaded is returned by node-creating operations before the catalog resolved.
var ErrRegistryNotLoaded = errors.New("node type registry not loaded")

// ErrSessionNotLoaded is returned when saving or executing a session that has no workflow yet.
var ErrSessionNotLoaded = errors.New("session has no workflow loaded")

// ErrDraftNotFound is returned when a draft cannot be found in the store.
var ErrDraftNotFound = errors.New("draft not found")

// ErrWorkflowNotFound is returned by backends for unknown graph ids.
var ErrWorkflowNotFound = errors.New("workflow not found")

// UnknownNodeTypeError refuses an operation on a node type the registry does not know.
type UnknownNodeTypeError struct {
	Type string
}

func (e *UnknownNodeTypeError) Error() string {
	return fmt.Sprintf("unknown node type %q", e.Type)
}

// OrphanEdgeReference describes an edge whose endpoint is missing from the visual graph.
// It is tolerated: the edge is kept and the condition is reported.
type OrphanEdgeReference struct {
	EdgeID   NodeID
	Endpoint string // "source" or "target"
	Missing  NodeID
}

func (e *OrphanEdgeReference) Error() string {
	return fmt.Sprintf("edge %s references missing %s node %s", e.EdgeID, e.Endpoint, e.Missing)
}

// InvalidConfigValueError is a field-level config error. It never blocks other edits.
type InvalidConfigValueError struct {
	NodeID NodeID
	Field  string
	Cause  error
}

func (e *InvalidConfigValueError) Error() string {
	return fmt.Sprintf("node %s: invalid value for %q: %v", e.NodeID, e.Field, e.Cause)
}

func (e *InvalidConfigValueError) Unwrap() error { return e.Cause }

// FetchError wraps any failure of a backend call.
type FetchError struct {
	Endpoint string // e.g. "GET /workflows/42"
	Status   int    // HTTP status when a response was received, 0 otherwise
	Cause    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Endpoint, e.Status, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// SubmitError is returned when an execution could not be started.
type SubmitError struct {
	GraphID int64
	Errors  []string // backend-reported errors when success=false
	Cause   error    // transport failure, nil when the backend answered success=false
}

func (e *SubmitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("submit graph %d: %v", e.GraphID, e.Cause)
	}
	if len(e.Errors) > 0 {
		return fmt.Sprintf("submit graph %d rejected: %s", e.GraphID, strings.Join(e.Errors, "; "))
	}
	return fmt.Sprintf("submit graph %d rejected", e.GraphID)
}

func (e *SubmitError) Unwrap() error { return e.Cause }

// PollError stops polling for a run. The run's true status stays unknown to the client.
type PollError struct {
	GraphID int64
	RunID   string
	Poll    int
	Cause   error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll %d of run %s (graph %d): %v", e.Poll, e.RunID, e.GraphID, e.Cause)
}

func (e *PollError) Unwrap() error { return e.Cause }

// UnresolvedEdgeError is returned when a save payload cannot reference an edge endpoint
// because the node is absent from the submitted node set.
type UnresolvedEdgeError struct {
	Edges []NodeID
}

func (e *UnresolvedEdgeError) Error() string {
	ids := make([]string, len(e.Edges))
	for i, id := range e.Edges {
		ids[i] = id.String()
	}
	return fmt.Sprintf("edges with unresolved endpoints: %s", strings.Join(ids, ", "))
}
