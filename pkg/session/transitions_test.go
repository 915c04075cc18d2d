package session_test

import (
	"testing"

	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/mapper"
	"github.com/aretw0/flowdeck/pkg/registry"
	"github.com/aretw0/flowdeck/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() *registry.Registry {
	return registry.FromDefinitions([]domain.NodeTypeDefinition{
		{
			Type: domain.NodeTypeChatInput, Label: "CHAT INPUT", Category: domain.CategoryInputOutput,
			Inputs: []domain.Port{{Name: "message"}}, Outputs: []domain.Port{{Name: "output"}},
		},
		{
			Type: domain.NodeTypeLLM, Label: "Language Model", Category: domain.CategoryAIML,
			Inputs: []domain.Port{{Name: "user_prompt"}}, Outputs: []domain.Port{{Name: "response"}},
		},
		{
			Type: domain.NodeTypeCondition, Label: "If/Else", Category: domain.CategoryLogic,
			Inputs:  []domain.Port{{Name: "condition"}, {Name: "value"}},
			Outputs: []domain.Port{{Name: "true"}, {Name: "false"}},
		},
	})
}

// loadedScenario is the graph [{1 CHAT_INPUT}, {2 LLM_NODE}] with edge 5 from 1 to 2.
func loadedScenario(t *testing.T) session.State {
	t.Helper()
	g := &domain.PersistedGraph{
		GraphSummary: domain.GraphSummary{ID: 42, Name: "Scenario"},
		Vertices: []domain.PersistedVertex{
			{ID: domain.Int64Ptr(1), Type: domain.NodeTypeChatInput},
			{ID: domain.Int64Ptr(2), Type: domain.NodeTypeLLM, Properties: domain.VertexProperties{
				Config: map[string]any{"provider": "openai", "model_name": "gpt-4.1"},
			}},
		},
		Edges: []domain.PersistedEdge{{ID: domain.Int64Ptr(5), SourceID: 1, TargetID: 2}},
	}
	nodes, edges, orphans := mapper.LoadToVisual(g, testCatalog(), mapper.NewAllocator())
	require.Empty(t, orphans)
	g2 := domain.VisualGraph{Nodes: nodes, Edges: edges}
	return session.State{WorkflowID: 42, Name: g.Name, Graph: g2, Snapshot: g2.Clone()}
}

func TestScenario_LoadThenDeleteNode(t *testing.T) {
	s := loadedScenario(t)

	require.Len(t, s.Graph.Nodes, 2)
	assert.Equal(t, "1", s.Graph.Nodes[0].ID.String())
	assert.Equal(t, "2", s.Graph.Nodes[1].ID.String())
	require.Len(t, s.Graph.Edges, 1)
	assert.Equal(t, "5", s.Graph.Edges[0].ID.String())
	assert.Equal(t, domain.Durable(1), s.Graph.Edges[0].Source)
	assert.Equal(t, domain.Durable(2), s.Graph.Edges[0].Target)
	assert.False(t, s.IsDirty())

	next, err := session.DeleteNode(s, domain.Durable(2))
	require.NoError(t, err)
	assert.Len(t, next.Graph.Nodes, 1)
	assert.Equal(t, "1", next.Graph.Nodes[0].ID.String())
	assert.Empty(t, next.Graph.Edges)
	assert.True(t, next.IsDirty())

	// The input state is untouched.
	assert.Len(t, s.Graph.Nodes, 2)
	assert.Len(t, s.Graph.Edges, 1)
}

func TestScenario_AddNodeAllocatesTemporaryIDs(t *testing.T) {
	alloc := mapper.NewAllocator()
	s := session.NewState("New", "")

	s, first, err := session.AddNode(s, testCatalog(), alloc, domain.NodeTypeLLM, domain.Position{X: 10, Y: 20})
	require.NoError(t, err)
	assert.Equal(t, "-1", first.String())

	s, second, err := session.AddNode(s, testCatalog(), alloc, domain.NodeTypeLLM, domain.Position{X: 10, Y: 20})
	require.NoError(t, err)
	assert.Equal(t, "-2", second.String())

	n, ok := s.Graph.Node(first)
	require.True(t, ok)
	assert.Equal(t, "Language Model", n.Label)
	assert.Equal(t, domain.CategoryAIML, n.Category)
	assert.Equal(t, []domain.PortName{"user_prompt"}, n.InputPorts)
	assert.Equal(t, domain.Position{X: 10, Y: 20}, n.Position)
	assert.NotNil(t, n.Config)
	assert.Nil(t, n.OriginalID)
}

func TestAddNode_Refusals(t *testing.T) {
	alloc := mapper.NewAllocator()
	s := session.NewState("New", "")

	next, _, err := session.AddNode(s, testCatalog(), alloc, "MYSTERY", domain.Position{})
	var unknown *domain.UnknownNodeTypeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "MYSTERY", unknown.Type)
	assert.Empty(t, next.Graph.Nodes)
	assert.Equal(t, int64(-1), alloc.Peek(), "refused operations must not consume ids")

	_, _, err = session.AddNode(s, registry.New(), alloc, domain.NodeTypeLLM, domain.Position{})
	assert.ErrorIs(t, err, domain.ErrRegistryNotLoaded)
}

func TestTemporaryIDs_StrictlyDecreasingAcrossAddAndConnect(t *testing.T) {
	alloc := mapper.NewAllocator()
	s := session.NewState("New", "")
	var ids []domain.NodeID

	var a, b domain.NodeID
	var err error
	s, a, err = session.AddNode(s, testCatalog(), alloc, domain.NodeTypeChatInput, domain.Position{})
	require.NoError(t, err)
	ids = append(ids, a)
	for i := 0; i < 5; i++ {
		s, b, err = session.AddNode(s, testCatalog(), alloc, domain.NodeTypeLLM, domain.Position{})
		require.NoError(t, err)
		ids = append(ids, b)
		var e domain.NodeID
		s, e, err = session.Connect(s, alloc, a, b, nil, nil)
		require.NoError(t, err)
		ids = append(ids, e)
	}

	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i].Int64(), ids[i-1].Int64())
	}
}

func TestUpdateNodeConfig_ProviderResetsModel(t *testing.T) {
	s := loadedScenario(t)
	llm := domain.Durable(2)

	for _, provider := range []string{"anthropic", "openai", "google"} {
		next, err := session.UpdateNodeConfig(s, llm, map[string]any{"provider": provider})
		require.NoError(t, err)
		n, _ := next.Graph.Node(llm)
		assert.Equal(t, provider, n.Config["provider"])
		assert.Equal(t, "", n.Config["model_name"])
	}

	next, err := session.UpdateNodeConfig(s, llm, map[string]any{"provider": "google", "model_name": "gemini-2.0-flash"})
	require.NoError(t, err)
	n, _ := next.Graph.Node(llm)
	assert.Equal(t, "gemini-2.0-flash", n.Config["model_name"])

	next, err = session.UpdateNodeConfig(s, llm, map[string]any{"user_prompt": "hi"})
	require.NoError(t, err)
	n, _ = next.Graph.Node(llm)
	assert.Equal(t, "gpt-4.1", n.Config["model_name"], "unrelated keys keep model_name")

	orig, _ := s.Graph.Node(llm)
	assert.Equal(t, "gpt-4.1", orig.Config["model_name"], "input state must not change")
}

func TestUpdateNodeConfig_ProviderOnOtherTypesIsPlainMerge(t *testing.T) {
	alloc := mapper.NewAllocator()
	s, id, err := session.AddNode(session.NewState("x", ""), testCatalog(), alloc, domain.NodeTypeCondition, domain.Position{})
	require.NoError(t, err)
	s, err = session.UpdateNodeConfig(s, id, map[string]any{"model_name": "keep"})
	require.NoError(t, err)

	s, err = session.UpdateNodeConfig(s, id, map[string]any{"provider": "x"})
	require.NoError(t, err)
	n, _ := s.Graph.Node(id)
	assert.Equal(t, "keep", n.Config["model_name"])
}

func TestUpdateNodeConfig_UnknownNode(t *testing.T) {
	_, err := session.UpdateNodeConfig(loadedScenario(t), domain.Durable(99), map[string]any{"a": 1})
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestSetConfigField(t *testing.T) {
	s := loadedScenario(t)
	llm := domain.Durable(2)

	next, err := session.SetConfigField(s, llm, "compare_value", `{"threshold": 3}`)
	require.NoError(t, err)
	n, _ := next.Graph.Node(llm)
	assert.Equal(t, map[string]any{"threshold": 3.0}, n.Config["compare_value"])

	same, err := session.SetConfigField(next, llm, "compare_value", `{"threshold": `)
	var invalid *domain.InvalidConfigValueError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "compare_value", invalid.Field)
	assert.Equal(t, llm, invalid.NodeID)
	assert.Contains(t, err.Error(), "Invalid JSON format")
	n, _ = same.Graph.Node(llm)
	assert.Equal(t, map[string]any{"threshold": 3.0}, n.Config["compare_value"], "state unchanged on parse error")

	// A field-level error does not block other edits.
	_, err = session.UpdateNodeLabel(same, llm, "Renamed")
	assert.NoError(t, err)
}

func TestSetFieldsToAdd(t *testing.T) {
	s, err := session.SetFieldsToAdd(loadedScenario(t), domain.Durable(1), [][2]string{{"source", "chat"}, {"", "x"}})
	require.NoError(t, err)
	n, _ := s.Graph.Node(domain.Durable(1))
	assert.Equal(t, map[string]string{"source": "chat"}, n.Config[domain.ConfigKeyFieldsToAdd])
}

func TestDeleteNode_CascadesEveryEdgeAndSelection(t *testing.T) {
	alloc := mapper.NewAllocator()
	s := loadedScenario(t)
	var err error
	s, _, err = session.Connect(s, alloc, domain.Durable(2), domain.Durable(2), nil, nil)
	require.NoError(t, err)
	s, _, err = session.Connect(s, alloc, domain.Durable(1), domain.Durable(2), domain.StringPtr("output"), domain.StringPtr("user_prompt"))
	require.NoError(t, err)
	s, err = session.Select(s, domain.Durable(2))
	require.NoError(t, err)

	next, err := session.DeleteNode(s, domain.Durable(2))
	require.NoError(t, err)
	for _, e := range next.Graph.Edges {
		assert.False(t, e.Touches(domain.Durable(2)))
	}
	assert.Empty(t, next.Graph.Edges)
	assert.True(t, next.Selected.IsZero())

	_, err = session.DeleteNode(next, domain.Durable(2))
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestConnect_Permissive(t *testing.T) {
	alloc := mapper.NewAllocator()
	s := loadedScenario(t)
	h := domain.StringPtr("response")

	s, e1, err := session.Connect(s, alloc, domain.Durable(2), domain.Durable(2), h, domain.StringPtr("user_prompt"))
	require.NoError(t, err)
	s, e2, err := session.Connect(s, alloc, domain.Durable(2), domain.Durable(2), h, domain.StringPtr("user_prompt"))
	require.NoError(t, err)

	assert.NotEqual(t, e1, e2)
	assert.Len(t, s.Graph.Edges, 3)

	_, _, err = session.Connect(s, alloc, domain.Durable(1), domain.Temporary(40), nil, nil)
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestDisconnect(t *testing.T) {
	s, err := session.Disconnect(loadedScenario(t), domain.Durable(5))
	require.NoError(t, err)
	assert.Empty(t, s.Graph.Edges)
	assert.True(t, s.IsDirty())

	_, err = session.Disconnect(s, domain.Durable(5))
	assert.ErrorIs(t, err, domain.ErrEdgeNotFound)
}

func TestApplyEdgeChanges_ReattachesHandles(t *testing.T) {
	alloc := mapper.NewAllocator()
	s := loadedScenario(t)
	s, id, err := session.Connect(s, alloc, domain.Durable(1), domain.Durable(2), domain.StringPtr("output"), domain.StringPtr("user_prompt"))
	require.NoError(t, err)

	// The canvas reports the edge back without its custom handle fields.
	stripped := domain.VisualEdge{ID: id, Source: domain.Durable(1), Target: domain.Durable(2)}
	next, err := session.ApplyEdgeChanges(s, []session.EdgeChange{
		{Type: session.EdgeReplace, ID: id, Edge: &stripped},
		{Type: session.EdgeRemove, ID: domain.Durable(5)},
		{Type: session.EdgeSelect, ID: id},
	})
	require.NoError(t, err)

	require.Len(t, next.Graph.Edges, 1)
	e := next.Graph.Edges[0]
	require.NotNil(t, e.SourceHandle)
	require.NotNil(t, e.TargetHandle)
	assert.Equal(t, "output", *e.SourceHandle)
	assert.Equal(t, "user_prompt", *e.TargetHandle)
}

func TestApplyEdgeChanges_Atomic(t *testing.T) {
	s := loadedScenario(t)
	next, err := session.ApplyEdgeChanges(s, []session.EdgeChange{
		{Type: session.EdgeRemove, ID: domain.Durable(5)},
		{Type: session.EdgeRemove, ID: domain.Durable(6)},
	})
	assert.ErrorIs(t, err, domain.ErrEdgeNotFound)
	assert.Len(t, next.Graph.Edges, 1)
}

func TestApplyNodeChanges(t *testing.T) {
	s := loadedScenario(t)
	pos := domain.Position{X: 500, Y: 80}

	next, err := session.ApplyNodeChanges(s, []session.NodeChange{
		{Type: session.NodePosition, ID: domain.Durable(1), Position: &pos},
		{Type: session.NodeSelect, ID: domain.Durable(1), Selected: true},
		{Type: session.NodeRemove, ID: domain.Durable(2)},
	})
	require.NoError(t, err)
	n, _ := next.Graph.Node(domain.Durable(1))
	assert.Equal(t, pos, n.Position)
	assert.Equal(t, domain.Durable(1), next.Selected)
	assert.Empty(t, next.Graph.Edges)

	next, err = session.ApplyNodeChanges(next, []session.NodeChange{{Type: session.NodeSelect, ID: domain.Durable(1)}})
	require.NoError(t, err)
	assert.True(t, next.Selected.IsZero())

	_, err = session.ApplyNodeChanges(s, []session.NodeChange{{Type: session.NodeRemove, ID: domain.Durable(9)}})
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestDirtyTracking(t *testing.T) {
	s := loadedScenario(t)
	assert.Equal(t, domain.EntityClean, s.NodeState(domain.Durable(2)))

	moved, err := session.MoveNode(s, domain.Durable(2), domain.Position{X: 1, Y: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.EntityDirty, moved.NodeState(domain.Durable(2)))
	assert.Equal(t, domain.EntityClean, moved.NodeState(domain.Durable(1)))
	assert.True(t, moved.IsDirty())

	back, err := session.MoveNode(moved, domain.Durable(2), domain.DefaultPosition)
	require.NoError(t, err)
	assert.False(t, back.IsDirty(), "reverting an edit makes the node clean again")

	selected, err := session.Select(s, domain.Durable(1))
	require.NoError(t, err)
	assert.False(t, selected.IsDirty(), "selection is not an edit")
	node, ok := selected.SelectedNode()
	require.True(t, ok)
	assert.Equal(t, domain.NodeTypeChatInput, node.NodeType)
	assert.True(t, session.ClearSelection(selected).Selected.IsZero())
}
