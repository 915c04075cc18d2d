package domain

import (
	"strconv"
	"time"
)

// Draft is an unsaved edit session persisted locally so it survives a restart.
type Draft struct {
	Key         string      `json:"key"`
	WorkflowID  int64       `json:"workflow_id,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Graph       VisualGraph `json:"graph"`
	// Snapshot is the graph as last loaded from the backend. Dirty tracking resumes against it.
	Snapshot VisualGraph `json:"snapshot"`
	// NextTemp is the next temporary id the session allocator would hand out.
	NextTemp    int64     `json:"next_temp"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
	// Sealed holds the whole draft encrypted when the store encrypts at rest. The other
	// content fields are then empty.
	Sealed string `json:"sealed,omitempty"`
}

// DraftKey returns the store key for a workflow. Unsaved workflows (id 0) use the fallback.
func DraftKey(workflowID int64, fallback string) string {
	if workflowID == 0 {
		return "new-" + fallback
	}
	return "workflow-" + strconv.FormatInt(workflowID, 10)
}
