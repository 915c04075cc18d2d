package ports

import (
	"context"

	"github.com/aretw0/flowdeck/pkg/domain"
)

// DraftStore defines the interface for persisting unsaved edit sessions.
// This allows an editor to be closed and resumed without losing local changes.
type DraftStore interface {
	// Save persists the draft under draft.Key, replacing any previous version.
	Save(ctx context.Context, draft *domain.Draft) error

	// Load retrieves the draft for a key.
	// Returns domain.ErrDraftNotFound if the draft does not exist.
	Load(ctx context.Context, key string) (*domain.Draft, error)

	// Delete removes the draft for a key. Deleting a missing draft is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys of all stored drafts.
	List(ctx context.Context) ([]string, error)
}
