package domain

import "math"

// Position is a canvas coordinate.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// DefaultPosition is used for vertices persisted without coordinates.
var DefaultPosition = Position{X: 100, Y: 100}

// Rounded returns the position snapped to integer coordinates.
// Sub-pixel precision is never persisted.
func (p Position) Rounded() Position {
	return Position{X: math.Round(p.X), Y: math.Round(p.Y)}
}

// VertexProperties is the property bag stored with a vertex.
type VertexProperties struct {
	Label    string         `json:"label,omitempty" yaml:"label,omitempty"`
	Position *Position      `json:"position,omitempty" yaml:"position,omitempty"`
	Config   map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// PersistedVertex is a backend-owned node. ID is nil for vertices that were never saved.
// TempRef carries the temporary id of an unsaved vertex so edges in the same payload
// can reference it before the backend assigns a durable id.
type PersistedVertex struct {
	ID         *int64           `json:"id,omitempty" yaml:"id,omitempty"`
	TempRef    *int64           `json:"temp_ref,omitempty" yaml:"temp_ref,omitempty"`
	Type       string           `json:"type" yaml:"type"`
	Properties VertexProperties `json:"properties" yaml:"properties"`
}

// EndpointProperties describes one end of a persisted edge.
type EndpointProperties struct {
	Name *string `json:"name,omitempty" yaml:"name,omitempty"`
	// Handle is the legacy key some stored edges still carry.
	Handle *string `json:"handle,omitempty" yaml:"handle,omitempty"`
}

// PortName returns the port referenced by this endpoint, preferring Name over the legacy Handle.
func (p EndpointProperties) PortName() *string {
	if p.Name != nil && *p.Name != "" {
		return p.Name
	}
	if p.Handle != nil && *p.Handle != "" {
		return p.Handle
	}
	return nil
}

// EdgeTypeDefault is the only edge type the editor emits.
const EdgeTypeDefault = "default"

// PersistedEdge is a backend-owned connection between two vertices.
type PersistedEdge struct {
	ID               *int64             `json:"id,omitempty" yaml:"id,omitempty"`
	SourceID         int64              `json:"source_id" yaml:"source_id"`
	TargetID         int64              `json:"target_id" yaml:"target_id"`
	Type             string             `json:"type,omitempty" yaml:"type,omitempty"`
	SourceProperties EndpointProperties `json:"source_properties" yaml:"source_properties"`
	TargetProperties EndpointProperties `json:"target_properties" yaml:"target_properties"`
}

// GraphSummary is the metadata part of a graph as returned by list and metadata endpoints.
type GraphSummary struct {
	ID          int64          `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Properties  map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
	CreatedAt   string         `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt   string         `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// PersistedGraph is a full workflow as the backend stores it.
type PersistedGraph struct {
	GraphSummary
	Vertices []PersistedVertex
	Edges    []PersistedEdge
}

// WorkflowDetail is the wire shape of GET /workflows/{id}.
type WorkflowDetail struct {
	Graph    GraphSummary      `json:"graph"`
	Vertices []PersistedVertex `json:"vertices"`
	Edges    []PersistedEdge   `json:"edges"`
}

// ToGraph folds the wire shape into a PersistedGraph.
func (d WorkflowDetail) ToGraph() *PersistedGraph {
	return &PersistedGraph{
		GraphSummary: d.Graph,
		Vertices:     d.Vertices,
		Edges:        d.Edges,
	}
}

// WorkflowSavePayload is the change set sent on create or update.
// Entities missing from the payload are deleted by the backend.
type WorkflowSavePayload struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Vertices    []PersistedVertex `json:"vertices" yaml:"vertices"`
	Edges       []PersistedEdge   `json:"edges" yaml:"edges"`
}

// SaveResult is returned by create and update.
type SaveResult struct {
	Success bool   `json:"success"`
	GraphID int64  `json:"graph_id"`
	Message string `json:"message"`
}

// DeleteResult is returned by delete.
type DeleteResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Int64Ptr is a small helper for optional durable ids.
func Int64Ptr(v int64) *int64 { return &v }

// StringPtr is a small helper for optional port names.
func StringPtr(v string) *string { return &v }
