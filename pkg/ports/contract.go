package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDraftStoreContract runs a suite of tests to verify that a DraftStore implementation
// adheres to the defined interface contract.
func RunDraftStoreContract(t *testing.T, store DraftStore) {
	ctx := context.Background()
	key := "contract-test-draft-" + time.Now().Format("20060102150405")

	newDraft := func(key string) *domain.Draft {
		return &domain.Draft{
			Key:        key,
			WorkflowID: 42,
			Name:       "Contract",
			Graph: domain.VisualGraph{
				Nodes: []domain.VisualNode{
					{ID: domain.Durable(1), NodeType: domain.NodeTypeChatInput, Position: domain.Position{X: 10, Y: 20}},
					{ID: domain.Temporary(1), NodeType: domain.NodeTypeLLM, Config: map[string]any{"provider": "openai"}},
				},
				Edges: []domain.VisualEdge{
					{ID: domain.Temporary(2), Source: domain.Durable(1), Target: domain.Temporary(1), TargetHandle: domain.StringPtr("user_prompt")},
				},
			},
			NextTemp:  -3,
			UpdatedAt: time.Now().UTC().Truncate(time.Second),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		draft := newDraft(key)

		err := store.Save(ctx, draft)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, draft.WorkflowID, loaded.WorkflowID)
		assert.Equal(t, draft.NextTemp, loaded.NextTemp)
		require.Len(t, loaded.Graph.Nodes, 2)
		// Temporary ids must survive persistence as temporary.
		assert.True(t, loaded.Graph.Nodes[1].ID.IsTemporary())
		assert.Equal(t, "openai", loaded.Graph.Nodes[1].Config["provider"])
		require.Len(t, loaded.Graph.Edges, 1)
		assert.Equal(t, domain.Temporary(1), loaded.Graph.Edges[0].Target)
		assert.Equal(t, "user_prompt", *loaded.Graph.Edges[0].TargetHandle)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+key)
		assert.ErrorIs(t, err, domain.ErrDraftNotFound)
	})

	t.Run("Overwrite", func(t *testing.T) {
		draft := newDraft(key)
		draft.Name = "Renamed"
		require.NoError(t, store.Save(ctx, draft))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", loaded.Name)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, newDraft(key))
		require.NoError(t, err)

		err = store.Delete(ctx, key)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrDraftNotFound, "Load after Delete should return ErrDraftNotFound")

		assert.NoError(t, store.Delete(ctx, key), "Deleting a missing draft should not fail")
	})

	t.Run("List", func(t *testing.T) {
		id1 := key + "-1"
		id2 := key + "-2"
		_ = store.Save(ctx, newDraft(id1))
		_ = store.Save(ctx, newDraft(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, id1)
		assert.Contains(t, keys, id2)
	})
}
