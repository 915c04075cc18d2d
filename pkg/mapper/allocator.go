package mapper

import (
	"sync"

	"github.com/aretw0/flowdeck/pkg/domain"
)

// Allocator hands out temporary ids for one edit session.
// Ids are strictly decreasing and never reused, for nodes and edges alike.
type Allocator struct {
	mu   sync.Mutex
	next int64
}

// NewAllocator creates an allocator whose first id is -1.
func NewAllocator() *Allocator {
	return &Allocator{next: -1}
}

// ResumeAllocator creates an allocator that continues from a persisted counter.
func ResumeAllocator(next int64) *Allocator {
	if next >= 0 {
		next = -1
	}
	return &Allocator{next: next}
}

// Next allocates a fresh temporary id.
func (a *Allocator) Next() domain.NodeID {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := domain.Temporary(a.next)
	a.next--
	return id
}

// Peek returns the value the next call to Next would use.
func (a *Allocator) Peek() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}

// Observe moves the counter past an existing temporary id so it is never handed out again.
func (a *Allocator) Observe(id domain.NodeID) {
	if !id.IsTemporary() {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if id.Int64() <= a.next {
		a.next = id.Int64() - 1
	}
}
