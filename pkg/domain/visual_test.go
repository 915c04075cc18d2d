package domain_test

import (
	"testing"

	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestVisualGraph_StartNodes(t *testing.T) {
	g := domain.VisualGraph{Nodes: []domain.VisualNode{
		{ID: domain.Durable(1), NodeType: domain.NodeTypeLLM},
		{ID: domain.Durable(2), NodeType: domain.NodeTypeChatInput},
		{ID: domain.Temporary(1), NodeType: domain.NodeTypeChatInput},
	}}
	starts := g.StartNodes()
	if assert.Len(t, starts, 2) {
		assert.Equal(t, domain.Durable(2), starts[0].ID)
		assert.Equal(t, domain.Temporary(1), starts[1].ID)
	}
	assert.Empty(t, domain.VisualGraph{}.StartNodes())
}

func TestVisualNode_CloneIsIndependent(t *testing.T) {
	n := domain.VisualNode{
		ID:         domain.Durable(1),
		Config:     map[string]any{"nested": map[string]any{"k": "v"}},
		OriginalID: domain.Int64Ptr(1),
	}
	c := n.Clone()
	c.Config["nested"].(map[string]any)["k"] = "changed"
	*c.OriginalID = 9

	assert.Equal(t, "v", n.Config["nested"].(map[string]any)["k"])
	assert.Equal(t, int64(1), *n.OriginalID)
	assert.Equal(t, "CHAT_INPUT", domain.VisualNode{NodeType: domain.NodeTypeChatInput}.DisplayLabel())
}
