package tui

import (
	"bytes"
	"testing"
	"time"

	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReport(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	run := domain.ExecutionRun{
		ID:             "0123456789abcdef",
		GraphID:        42,
		Status:         domain.RunCompleted,
		Polls:          4,
		ExecutionOrder: []string{"1", "3"},
		Nodes: map[string]domain.NodeStatus{
			"1":  {NodeID: "1", Status: domain.NodeCompleted},
			"3":  {NodeID: "3", Status: domain.NodeCompleted, OutputData: map[string]any{"message": "hello\nworld"}},
			"10": {NodeID: "10", Status: domain.NodeFailed, ErrorMessage: "bad | pipe"},
			"2":  {NodeID: "2", Status: domain.NodeSkipped},
		},
		SubmittedAt: start,
		FinishedAt:  start.Add(1500 * time.Millisecond),
	}

	md := RunReport(run)
	assert.Contains(t, md, "# Run 01234567")
	assert.Contains(t, md, "- **Status**: `completed`")
	assert.Contains(t, md, "- **Elapsed**: 1.5s")
	assert.Contains(t, md, `| 10 | failed | bad \| pipe |`)
	assert.Contains(t, md, "> hello\n> world")

	// Execution order first, the rest numerically.
	i1 := bytes.Index([]byte(md), []byte("| 1 |"))
	i3 := bytes.Index([]byte(md), []byte("| 3 |"))
	i2 := bytes.Index([]byte(md), []byte("| 2 |"))
	i10 := bytes.Index([]byte(md), []byte("| 10 |"))
	assert.True(t, i1 < i3 && i3 < i2 && i2 < i10, md)
}

func TestRunReport_Rejected(t *testing.T) {
	md := RunReport(domain.ExecutionRun{ID: "r", Status: domain.RunFailed, Errors: []string{"graph has a cycle"}})
	assert.Contains(t, md, "## Errors")
	assert.Contains(t, md, "- graph has a cycle")
	assert.NotContains(t, md, "## Nodes")
	assert.NotContains(t, md, "## Reply")
}

func TestPlainOutputForNonTerminals(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, IsTerminal(&buf))
	assert.Equal(t, "completed", Status(&buf, "completed"))
	assert.Equal(t, "mystery", Status(&buf, "mystery"))

	render := NewRenderer(false)
	out, err := render("# Title")
	require.NoError(t, err)
	assert.Equal(t, "# Title", out)

	PrintBanner(&buf, "0.1.0")
	assert.Contains(t, buf.String(), "v0.1.0")
}
