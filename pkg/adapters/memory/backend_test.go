package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/flowdeck/pkg/adapters/memory"
	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.WorkflowAPI = (*memory.Backend)(nil)

func chatPayload() domain.WorkflowSavePayload {
	return domain.WorkflowSavePayload{
		Name: "Chat",
		Vertices: []domain.PersistedVertex{
			{TempRef: domain.Int64Ptr(-1), Type: domain.NodeTypeChatInput},
			{TempRef: domain.Int64Ptr(-2), Type: domain.NodeTypeLLM, Properties: domain.VertexProperties{
				Config: map[string]any{"provider": "openai"},
			}},
			{TempRef: domain.Int64Ptr(-3), Type: domain.NodeTypeChatOutput},
		},
		Edges: []domain.PersistedEdge{
			{SourceID: -1, TargetID: -2, TargetProperties: domain.EndpointProperties{Name: domain.StringPtr("user_prompt")}},
			{SourceID: -2, TargetID: -3},
		},
	}
}

func TestBackend_CreateResolvesTemporaryReferences(t *testing.T) {
	ctx := context.Background()
	b := memory.NewBackend()

	res, err := b.CreateWorkflow(ctx, chatPayload())
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	g, err := b.GetWorkflow(ctx, res.GraphID)
	require.NoError(t, err)
	assert.Equal(t, "Chat", g.Name)
	require.Len(t, g.Vertices, 3)
	require.Len(t, g.Edges, 2)

	ids := make(map[int64]string)
	for _, v := range g.Vertices {
		require.NotNil(t, v.ID)
		assert.Nil(t, v.TempRef)
		ids[*v.ID] = v.Type
	}
	assert.Equal(t, domain.NodeTypeChatInput, ids[g.Edges[0].SourceID])
	assert.Equal(t, domain.NodeTypeLLM, ids[g.Edges[0].TargetID])
	assert.Equal(t, "user_prompt", *g.Edges[0].TargetProperties.Name)
	assert.Equal(t, domain.EdgeTypeDefault, g.Edges[0].Type)
}

func TestBackend_UpdateDeletesMissingEntities(t *testing.T) {
	ctx := context.Background()
	b := memory.NewBackend()
	res, err := b.CreateWorkflow(ctx, chatPayload())
	require.NoError(t, err)

	g, err := b.GetWorkflow(ctx, res.GraphID)
	require.NoError(t, err)

	// Keep only the first vertex.
	payload := domain.WorkflowSavePayload{Name: "Trimmed", Vertices: g.Vertices[:1]}
	res, err = b.UpdateWorkflow(ctx, g.ID, payload)
	require.NoError(t, err)
	require.True(t, res.Success)

	g, err = b.GetWorkflow(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Trimmed", g.Name)
	assert.Len(t, g.Vertices, 1)
	assert.Empty(t, g.Edges)
}

func TestBackend_RejectsUnresolvableEdges(t *testing.T) {
	ctx := context.Background()
	b := memory.NewBackend()

	payload := chatPayload()
	payload.Edges = append(payload.Edges, domain.PersistedEdge{SourceID: -1, TargetID: -9})
	res, err := b.CreateWorkflow(ctx, payload)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "unknown target vertex -9")

	list, err := b.ListWorkflows(ctx)
	require.NoError(t, err)
	assert.Empty(t, list, "a rejected save stores nothing")
}

func TestBackend_NotFound(t *testing.T) {
	ctx := context.Background()
	b := memory.NewBackend()

	_, err := b.GetWorkflow(ctx, 7)
	assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
	_, err = b.GetWorkflowMetadata(ctx, 7)
	assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
	_, err = b.UpdateWorkflow(ctx, 7, domain.WorkflowSavePayload{})
	assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
	_, err = b.DeleteWorkflow(ctx, 7)
	assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
	_, err = b.Execute(ctx, 7, nil)
	assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
}

func TestBackend_ExecuteFollowsStatusScript(t *testing.T) {
	ctx := context.Background()
	b := memory.NewBackend(memory.WithStatusScript(domain.RunPending, domain.RunRunning, domain.RunCompleted))
	res, err := b.CreateWorkflow(ctx, chatPayload())
	require.NoError(t, err)

	idle, err := b.Status(ctx, res.GraphID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunIdle, idle.Status)

	exec, err := b.Execute(ctx, res.GraphID, map[string]any{"test_data": "hi", "trigger_type": "chat"})
	require.NoError(t, err)
	require.True(t, exec.Success)
	require.Len(t, exec.ExecutionOrder, 3)

	var seen []domain.RunStatus
	for i := 0; i < 4; i++ {
		st, err := b.Status(ctx, res.GraphID)
		require.NoError(t, err)
		seen = append(seen, st.Status)
	}
	assert.Equal(t, []domain.RunStatus{domain.RunPending, domain.RunRunning, domain.RunCompleted, domain.RunCompleted}, seen)

	last := exec.ExecutionOrder[2]
	ns, err := b.NodeStatus(ctx, res.GraphID, last)
	require.NoError(t, err)
	assert.Equal(t, domain.NodeCompleted, ns.Status)
	assert.Equal(t, "hi", ns.OutputData["message"])

	_, err = b.NodeStatus(ctx, res.GraphID, "999")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestBackend_ExecuteRejectsCycles(t *testing.T) {
	ctx := context.Background()
	b := memory.NewBackend()
	require.NoError(t, b.Put(&domain.PersistedGraph{
		GraphSummary: domain.GraphSummary{ID: 3, Name: "Loop"},
		Vertices: []domain.PersistedVertex{
			{ID: domain.Int64Ptr(1), Type: domain.NodeTypeLLM},
			{ID: domain.Int64Ptr(2), Type: domain.NodeTypeLLM},
		},
		Edges: []domain.PersistedEdge{
			{ID: domain.Int64Ptr(3), SourceID: 1, TargetID: 2},
			{ID: domain.Int64Ptr(4), SourceID: 2, TargetID: 1},
		},
	}))

	exec, err := b.Execute(ctx, 3, nil)
	require.NoError(t, err)
	assert.False(t, exec.Success)
	assert.Contains(t, exec.Errors[0], "cycle")

	// Ids assigned after seeding never collide with seeded ones.
	res, err := b.CreateWorkflow(ctx, chatPayload())
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.GraphID)
	g, err := b.GetWorkflow(ctx, res.GraphID)
	require.NoError(t, err)
	for _, v := range g.Vertices {
		assert.Greater(t, *v.ID, int64(4))
	}
}

func TestBackend_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	b := memory.NewBackend()
	res, err := b.CreateWorkflow(ctx, chatPayload())
	require.NoError(t, err)

	g, err := b.GetWorkflow(ctx, res.GraphID)
	require.NoError(t, err)
	g.Vertices[1].Properties.Config["provider"] = "mutated"

	again, err := b.GetWorkflow(ctx, res.GraphID)
	require.NoError(t, err)
	assert.Equal(t, "openai", again.Vertices[1].Properties.Config["provider"])
}
