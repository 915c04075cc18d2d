// Package registry holds the node type catalog fetched from the workflow backend.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/flowdeck/internal/logging"
	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/ports"
)

// Category groups node types for the palette.
type Category struct {
	Name  string
	Types []domain.NodeTypeDefinition
}

// Registry manages the available node types.
// The catalog is loaded once; a failed load may be retried.
type Registry struct {
	loadMu sync.Mutex // serializes Load

	mu     sync.RWMutex
	types  map[string]domain.NodeTypeDefinition
	order  []string
	loaded bool
	ready  chan struct{}

	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New creates a new empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		types:  make(map[string]domain.NodeTypeDefinition),
		ready:  make(chan struct{}),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FromDefinitions creates a registry that is already loaded with a static catalog.
func FromDefinitions(defs []domain.NodeTypeDefinition, opts ...Option) *Registry {
	r := New(opts...)
	r.install(defs)
	return r
}

// Load fetches the catalog from the source. Only the first successful call reaches the
// source: later calls return the cached catalog.
// Transport failures are returned as *domain.FetchError.
func (r *Registry) Load(ctx context.Context, source ports.NodeTypeSource) ([]domain.NodeTypeDefinition, error) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	if r.IsLoaded() {
		return r.Types(), nil
	}

	defs, err := source.NodeTypes(ctx)
	if err != nil {
		r.logger.Warn("node type catalog load failed", "error", err)
		var fetchErr *domain.FetchError
		if errors.As(err, &fetchErr) {
			return nil, err
		}
		return nil, &domain.FetchError{Endpoint: "GET /workflows/node-types/", Cause: err}
	}

	r.install(defs)
	r.logger.Debug("node type catalog loaded", "count", len(defs))
	return r.Types(), nil
}

func (r *Registry) install(defs []domain.NodeTypeDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return
	}
	for _, def := range defs {
		if _, dup := r.types[def.Type]; dup {
			r.logger.Warn("duplicate node type in catalog, keeping first", "type", def.Type)
			continue
		}
		r.types[def.Type] = def
		r.order = append(r.order, def.Type)
	}
	r.loaded = true
	close(r.ready)
}

// IsLoaded reports whether the catalog resolved.
func (r *Registry) IsLoaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Ready returns a channel that is closed once the catalog resolved.
func (r *Registry) Ready() <-chan struct{} {
	return r.ready
}

// Wait blocks until the catalog resolved or the context is done.
func (r *Registry) Wait(ctx context.Context) error {
	select {
	case <-r.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", domain.ErrRegistryNotLoaded, ctx.Err())
	}
}

// Lookup returns the definition for a node type.
func (r *Registry) Lookup(nodeType string) (domain.NodeTypeDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.types[nodeType]
	return def, ok
}

// Types returns the catalog in load order.
func (r *Registry) Types() []domain.NodeTypeDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.NodeTypeDefinition, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.types[t])
	}
	return out
}

// Categories groups the catalog by category, in order of first appearance.
func (r *Registry) Categories() []Category {
	var out []Category
	index := make(map[string]int)
	for _, def := range r.Types() {
		i, ok := index[def.Category]
		if !ok {
			i = len(out)
			index[def.Category] = i
			out = append(out, Category{Name: def.Category})
		}
		out[i].Types = append(out[i].Types, def)
	}
	return out
}

// Unmatched reports whether a handle names a port the definition does not declare.
// A nil handle is never unmatched: it refers to the generic port.
func Unmatched(def domain.NodeTypeDefinition, handle *string, isSource bool) bool {
	if handle == nil {
		return false
	}
	declared := def.Inputs
	if isSource {
		declared = def.Outputs
	}
	if len(declared) == 0 {
		return *handle != domain.GenericPort
	}
	for _, p := range declared {
		if p.Name == *handle {
			return false
		}
	}
	return true
}
