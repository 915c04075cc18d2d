// Package canvas translates canvas gestures into edit session transitions.
//
// The canvas reports node and edge changes in bulk, new connections, palette drops and
// clicks. Adapter forwards each of them to a session.Session; node creation waits until
// the node type registry has resolved.
package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/flowdeck/internal/logging"
	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/registry"
	"github.com/aretw0/flowdeck/pkg/session"
)

// Catalog is the registry view the adapter needs. *registry.Registry satisfies it.
type Catalog interface {
	Wait(ctx context.Context) error
	Lookup(nodeType string) (domain.NodeTypeDefinition, bool)
}

// Connection is a new edge drawn between two handles.
type Connection struct {
	Source       domain.NodeID `json:"source"`
	Target       domain.NodeID `json:"target"`
	SourceHandle *string       `json:"source_handle,omitempty"`
	TargetHandle *string       `json:"target_handle,omitempty"`
}

// Drop is a palette item released on the pane.
type Drop struct {
	NodeType string          `json:"node_type"`
	Position domain.Position `json:"position"`
}

// Adapter binds a canvas to one edit session.
type Adapter struct {
	session *session.Session
	catalog Catalog
	logger  *slog.Logger
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// New creates an Adapter.
func New(s *session.Session, catalog Catalog, opts ...Option) *Adapter {
	a := &Adapter{
		session: s,
		catalog: catalog,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NodesChange applies a bulk node change (drag, delete key, selection).
func (a *Adapter) NodesChange(changes []session.NodeChange) error {
	if len(changes) == 0 {
		return nil
	}
	return a.session.ApplyNodeChanges(changes)
}

// EdgesChange applies a bulk edge change. Handles the canvas dropped are restored.
func (a *Adapter) EdgesChange(changes []session.EdgeChange) error {
	if len(changes) == 0 {
		return nil
	}
	return a.session.ApplyEdgeChanges(changes)
}

// Connect adds the edge. Connections are permissive: a handle that does not match a
// declared port is logged, not refused.
func (a *Adapter) Connect(c Connection) (domain.NodeID, error) {
	a.warnUnmatched(c)
	return a.session.Connect(c.Source, c.Target, c.SourceHandle, c.TargetHandle)
}

func (a *Adapter) warnUnmatched(c Connection) {
	st := a.session.State()
	check := func(id domain.NodeID, handle *string, isSource bool) {
		n, ok := st.Graph.Node(id)
		if !ok || handle == nil {
			return
		}
		def, ok := a.catalog.Lookup(n.NodeType)
		if !ok {
			return
		}
		if registry.Unmatched(def, handle, isSource) {
			a.logger.Warn("connection uses an undeclared port",
				"node_id", id.String(), "node_type", n.NodeType, "handle", *handle, "source", isSource)
		}
	}
	check(c.Source, c.SourceHandle, true)
	check(c.Target, c.TargetHandle, false)
}

// Drop creates a node from a palette item. It blocks until the registry resolved or ctx ends.
func (a *Adapter) Drop(ctx context.Context, d Drop) (domain.NodeID, error) {
	if err := a.catalog.Wait(ctx); err != nil {
		return domain.NodeID{}, err
	}
	a.session.Annotate()
	return a.session.AddNode(d.NodeType, d.Position)
}

// NodeClick selects a node.
func (a *Adapter) NodeClick(id domain.NodeID) error {
	return a.session.Select(id)
}

// PaneClick clears the selection.
func (a *Adapter) PaneClick() error {
	return a.session.ClearSelection()
}

// ParseDrop decodes the drag payload of a palette item. The payload is either a bare node
// type or a JSON object with a "type" or "node_type" field.
func ParseDrop(payload string, pos domain.Position) (Drop, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return Drop{}, fmt.Errorf("empty drop payload")
	}
	if !strings.HasPrefix(payload, "{") {
		return Drop{NodeType: payload, Position: pos}, nil
	}

	var body struct {
		Type     string `json:"type"`
		NodeType string `json:"node_type"`
	}
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		return Drop{}, fmt.Errorf("invalid drop payload: %w", err)
	}
	nodeType := body.NodeType
	if nodeType == "" {
		nodeType = body.Type
	}
	if nodeType == "" {
		return Drop{}, fmt.Errorf("drop payload has no node type")
	}
	return Drop{NodeType: nodeType, Position: pos}, nil
}
