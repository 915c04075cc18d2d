package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/flowdeck/pkg/domain"
)

// RunReport renders a run snapshot as markdown: a header, the per-node table in execution
// order and the chat reply when an output node produced one.
func RunReport(run domain.ExecutionRun) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run %s\n\n", shortID(run.ID))
	fmt.Fprintf(&sb, "- **Workflow**: %d\n", run.GraphID)
	fmt.Fprintf(&sb, "- **Status**: `%s`\n", run.Status)
	fmt.Fprintf(&sb, "- **Polls**: %d\n", run.Polls)
	if !run.SubmittedAt.IsZero() && !run.FinishedAt.IsZero() {
		fmt.Fprintf(&sb, "- **Elapsed**: %s\n", run.FinishedAt.Sub(run.SubmittedAt).Round(1e6))
	}

	if len(run.Errors) > 0 {
		sb.WriteString("\n## Errors\n\n")
		for _, e := range run.Errors {
			fmt.Fprintf(&sb, "- %s\n", e)
		}
	}

	ids := nodeOrder(run)
	if len(ids) > 0 {
		sb.WriteString("\n## Nodes\n\n| Node | Status | Detail |\n|---|---|---|\n")
		for _, id := range ids {
			ns := run.Nodes[id]
			status := string(ns.Status)
			if status == "" {
				status = "-"
			}
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", id, status, cell(ns.ErrorMessage))
		}
	}

	if reply := chatReply(run, ids); reply != "" {
		fmt.Fprintf(&sb, "\n## Reply\n\n> %s\n", strings.ReplaceAll(reply, "\n", "\n> "))
	}
	return sb.String()
}

// nodeOrder lists node ids in execution order, then any others numerically.
func nodeOrder(run domain.ExecutionRun) []string {
	seen := make(map[string]bool, len(run.ExecutionOrder))
	ids := make([]string, 0, len(run.Nodes))
	for _, id := range run.ExecutionOrder {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	var rest []string
	for id := range run.Nodes {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		a, errA := strconv.ParseInt(rest[i], 10, 64)
		b, errB := strconv.ParseInt(rest[j], 10, 64)
		if errA != nil || errB != nil {
			return rest[i] < rest[j]
		}
		return a < b
	})
	return append(ids, rest...)
}

// chatReply is the message of the last completed node that produced one.
func chatReply(run domain.ExecutionRun, ids []string) string {
	for i := len(ids) - 1; i >= 0; i-- {
		ns := run.Nodes[ids[i]]
		if ns.Status != domain.NodeCompleted || ns.OutputData == nil {
			continue
		}
		if msg, ok := ns.OutputData["message"]; ok && msg != nil {
			return fmt.Sprint(msg)
		}
	}
	return ""
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
