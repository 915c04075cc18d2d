package canvas_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/flowdeck/pkg/adapters/memory"
	"github.com/aretw0/flowdeck/pkg/canvas"
	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/registry"
	"github.com/aretw0/flowdeck/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*canvas.Adapter, *session.Session, *registry.Registry, *memory.Backend) {
	t.Helper()
	backend := memory.NewBackend()
	require.NoError(t, backend.Put(&domain.PersistedGraph{
		GraphSummary: domain.GraphSummary{ID: 1, Name: "Canvas"},
		Vertices: []domain.PersistedVertex{
			{ID: domain.Int64Ptr(1), Type: domain.NodeTypeChatInput},
			{ID: domain.Int64Ptr(2), Type: domain.NodeTypeLLM},
		},
	}))
	reg := registry.New()
	s := session.New(backend, reg)
	require.NoError(t, s.Load(context.Background(), 1))
	return canvas.New(s, reg), s, reg, backend
}

func TestDrop_WaitsForRegistry(t *testing.T) {
	a, s, reg, backend := setup(t)

	// Nodes load unannotated while the catalog is pending.
	n, _ := s.State().Graph.Node(domain.Durable(2))
	assert.Empty(t, n.InputPorts)
	in, out := n.EffectivePorts()
	assert.Equal(t, []domain.PortName{domain.GenericPort}, in)
	assert.Equal(t, []domain.PortName{domain.GenericPort}, out)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := a.Drop(ctx, canvas.Drop{NodeType: domain.NodeTypeLLM})
	assert.ErrorIs(t, err, domain.ErrRegistryNotLoaded)
	assert.Len(t, s.State().Graph.Nodes, 2)

	go func() {
		time.Sleep(5 * time.Millisecond)
		_, _ = reg.Load(context.Background(), backend)
	}()
	id, err := a.Drop(context.Background(), canvas.Drop{NodeType: domain.NodeTypeLLM, Position: domain.Position{X: 10, Y: 20}})
	require.NoError(t, err)
	assert.True(t, id.IsTemporary())

	n, _ = s.State().Graph.Node(domain.Durable(2))
	assert.Equal(t, []domain.PortName{"user_prompt"}, n.InputPorts, "existing nodes are annotated once the registry resolves")
	assert.False(t, s.State().NodeState(domain.Durable(2)) == domain.EntityDirty, "annotation is not an edit")
}

func TestConnectAndChanges(t *testing.T) {
	a, s, reg, backend := setup(t)
	_, err := reg.Load(context.Background(), backend)
	require.NoError(t, err)

	edge, err := a.Connect(canvas.Connection{
		Source: domain.Durable(1), Target: domain.Durable(2),
		SourceHandle: domain.StringPtr("output"), TargetHandle: domain.StringPtr("user_prompt"),
	})
	require.NoError(t, err)

	stripped := domain.VisualEdge{ID: edge, Source: domain.Durable(1), Target: domain.Durable(2)}
	require.NoError(t, a.EdgesChange([]session.EdgeChange{{Type: session.EdgeReplace, ID: edge, Edge: &stripped}}))
	e, ok := s.State().Graph.Edge(edge)
	require.True(t, ok)
	assert.Equal(t, "output", *e.SourceHandle)

	pos := domain.Position{X: 300, Y: 40}
	require.NoError(t, a.NodesChange([]session.NodeChange{{Type: session.NodePosition, ID: domain.Durable(1), Position: &pos}}))
	require.NoError(t, a.NodeClick(domain.Durable(1)))
	assert.Equal(t, domain.Durable(1), s.State().Selected)
	require.NoError(t, a.PaneClick())
	assert.True(t, s.State().Selected.IsZero())

	require.NoError(t, a.NodesChange([]session.NodeChange{{Type: session.NodeRemove, ID: domain.Durable(2)}}))
	assert.Empty(t, s.State().Graph.Edges)
	assert.NoError(t, a.NodesChange(nil))
	assert.NoError(t, a.EdgesChange(nil))
}

func TestConnect_LogsUndeclaredPorts(t *testing.T) {
	backend := memory.NewBackend()
	require.NoError(t, backend.Put(&domain.PersistedGraph{
		GraphSummary: domain.GraphSummary{ID: 1},
		Vertices: []domain.PersistedVertex{
			{ID: domain.Int64Ptr(1), Type: domain.NodeTypeChatInput},
			{ID: domain.Int64Ptr(2), Type: domain.NodeTypeChatOutput},
		},
	}))
	reg := registry.New()
	_, err := reg.Load(context.Background(), backend)
	require.NoError(t, err)
	s := session.New(backend, reg)
	require.NoError(t, s.Load(context.Background(), 1))

	var buf bytes.Buffer
	a := canvas.New(s, reg, canvas.WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	_, err = a.Connect(canvas.Connection{Source: domain.Durable(1), Target: domain.Durable(2), TargetHandle: domain.StringPtr("nope")})
	require.NoError(t, err, "connections are permissive")
	assert.Contains(t, buf.String(), "undeclared port")
	assert.Contains(t, buf.String(), "handle=nope")
}

func TestParseDrop(t *testing.T) {
	pos := domain.Position{X: 1, Y: 2}
	tests := []struct {
		payload string
		want    string
		wantErr bool
	}{
		{payload: "LLM_NODE", want: "LLM_NODE"},
		{payload: ` {"type":"CONDITION"} `, want: "CONDITION"},
		{payload: `{"node_type":"PARSER_NODE","type":"ignored"}`, want: "PARSER_NODE"},
		{payload: "", wantErr: true},
		{payload: `{"label":"x"}`, wantErr: true},
		{payload: `{"type":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			d, err := canvas.ParseDrop(tt.payload, pos)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.NodeType)
			assert.Equal(t, pos, d.Position)
		})
	}
}
