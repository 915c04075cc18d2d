package session

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/flowdeck/internal/logging"
	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/ports"
	"lukechampine.com/blake3"
)

// DefaultLockTTL bounds how long a distributed lock is held if its owner dies.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager tracks open edit sessions and persists their unsaved drafts.
// Access to the same workflow is serialized with ref-counted per-key locks, and
// optionally across processes with a DistributedLocker.
type Manager struct {
	backend Backend
	catalog Catalog
	drafts  ports.DraftStore

	mu    sync.Mutex            // Global lock for the maps
	locks map[string]*lockEntry // Map of active locks
	open  map[int64]*Session    // Sessions of saved workflows, by workflow id

	locker      ports.DistributedLocker
	lockTTL     time.Duration
	sessionOpts []SessionOption
	logger      *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock TTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager and the sessions it opens.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithSessionOptions applies options to every session the Manager creates.
func WithSessionOptions(opts ...SessionOption) Option {
	return func(m *Manager) {
		m.sessionOpts = append(m.sessionOpts, opts...)
	}
}

// NewManager creates a session Manager. drafts may be nil, which disables draft persistence.
func NewManager(backend Backend, catalog Catalog, drafts ports.DraftStore, opts ...Option) *Manager {
	m := &Manager{
		backend: backend,
		catalog: catalog,
		drafts:  drafts,
		locks:   make(map[string]*lockEntry),
		open:    make(map[int64]*Session),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) newSession() *Session {
	opts := append([]SessionOption{WithSessionLogger(m.logger)}, m.sessionOpts...)
	return New(m.backend, m.catalog, opts...)
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// WithLock executes a function while holding the lock for the key.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := m.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"key", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Open returns the open session of a workflow, loading it on first use.
func (m *Manager) Open(ctx context.Context, workflowID int64) (*Session, error) {
	key := domain.DraftKey(workflowID, "")
	var sess *Session
	err := m.WithLock(ctx, key, func(ctx context.Context) error {
		m.mu.Lock()
		existing, ok := m.open[workflowID]
		m.mu.Unlock()
		if ok {
			sess = existing
			return nil
		}

		s := m.newSession()
		if err := s.Load(ctx, workflowID); err != nil {
			return err
		}
		m.mu.Lock()
		m.open[workflowID] = s
		m.mu.Unlock()
		sess = s
		return nil
	})
	return sess, err
}

// Start creates a session for a new, unsaved workflow. It is tracked once saved.
func (m *Manager) Start(name, description string) *Session {
	s := m.newSession()
	s.Start(name, description)
	return s
}

// Close forgets an open session. Its draft, if any, is kept.
func (m *Manager) Close(workflowID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.open, workflowID)
}

// Sessions returns the ids of open workflows.
func (m *Manager) Sessions() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.open))
	for id := range m.open {
		ids = append(ids, id)
	}
	return ids
}

// Annotate refreshes node port metadata of every open session. Call it once the catalog
// has loaded so sessions read before it stop running with empty ports.
func (m *Manager) Annotate() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.open))
	for _, s := range m.open {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Annotate()
	}
}

// Save saves a session while holding its workflow lock. On success the draft is
// discarded and the session is tracked under its (possibly new) workflow id.
func (m *Manager) Save(ctx context.Context, s *Session) (*domain.SaveResult, error) {
	key := s.Key()
	var res *domain.SaveResult
	err := m.WithLock(ctx, key, func(ctx context.Context) error {
		var err error
		res, err = s.Save(ctx)
		if err != nil {
			return err
		}
		if m.drafts != nil {
			if err := m.drafts.Delete(ctx, key); err != nil {
				m.logger.Warn("failed to discard draft after save", "key", key, "err", err)
			}
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	if id := s.State().WorkflowID; id != 0 {
		m.mu.Lock()
		m.open[id] = s
		m.mu.Unlock()
	}
	return res, nil
}

// SaveDraft persists the session's unsaved state. Clean sessions have their draft removed.
// A draft whose content did not change since the last write is not rewritten.
func (m *Manager) SaveDraft(ctx context.Context, s *Session) error {
	if m.drafts == nil {
		return nil
	}
	draft := s.Draft()
	return m.WithLock(ctx, draft.Key, func(ctx context.Context) error {
		if domain.DiffGraphs(draft.Snapshot, draft.Graph).IsEmpty() {
			return m.drafts.Delete(ctx, draft.Key)
		}

		fp, err := Fingerprint(draft)
		if err != nil {
			return err
		}
		draft.Fingerprint = fp

		existing, err := m.drafts.Load(ctx, draft.Key)
		switch {
		case err == nil && existing.Fingerprint == fp:
			m.logger.Debug("draft unchanged, skipping write", "key", draft.Key)
			return nil
		case err != nil && !errors.Is(err, domain.ErrDraftNotFound):
			return fmt.Errorf("failed to read draft %s: %w", draft.Key, err)
		}
		return m.drafts.Save(ctx, draft)
	})
}

// RestoreDraft opens a session from a stored draft.
func (m *Manager) RestoreDraft(ctx context.Context, key string) (*Session, error) {
	if m.drafts == nil {
		return nil, domain.ErrDraftNotFound
	}
	var sess *Session
	err := m.WithLock(ctx, key, func(ctx context.Context) error {
		draft, err := m.drafts.Load(ctx, key)
		if err != nil {
			return err
		}
		s := m.newSession()
		s.Restore(draft)
		if draft.WorkflowID != 0 {
			m.mu.Lock()
			m.open[draft.WorkflowID] = s
			m.mu.Unlock()
		}
		sess = s
		return nil
	})
	return sess, err
}

// DiscardDraft removes a stored draft.
func (m *Manager) DiscardDraft(ctx context.Context, key string) error {
	if m.drafts == nil {
		return nil
	}
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		return m.drafts.Delete(ctx, key)
	})
}

// ListDrafts delegates to the draft store.
func (m *Manager) ListDrafts(ctx context.Context) ([]string, error) {
	if m.drafts == nil {
		return nil, nil
	}
	return m.drafts.List(ctx)
}

// Drafts returns the underlying draft store.
func (m *Manager) Drafts() ports.DraftStore {
	return m.drafts
}

// Fingerprint hashes the editable content of a draft with BLAKE3.
func Fingerprint(d *domain.Draft) (string, error) {
	content := struct {
		WorkflowID  int64              `json:"workflow_id"`
		Name        string             `json:"name"`
		Description string             `json:"description"`
		Graph       domain.VisualGraph `json:"graph"`
	}{d.WorkflowID, d.Name, d.Description, d.Graph}

	b, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("failed to encode draft: %w", err)
	}
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
