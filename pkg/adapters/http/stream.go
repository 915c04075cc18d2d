package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/flowdeck/internal/logging"
	"github.com/aretw0/flowdeck/pkg/domain"
)

// StreamManager handles active SSE connections, keyed by graph id.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[int64]map[chan<- string]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[int64]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a listener for a graph. The returned func unsubscribes and closes
// the channel.
func (sm *StreamManager) Subscribe(graphID int64) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[graphID]; !ok {
		sm.subscribers[graphID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[graphID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[graphID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, graphID)
				}
			}
		})
	}
}

// Subscribers returns the number of listeners for a graph.
func (sm *StreamManager) Subscribers(graphID int64) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[graphID])
}

// Broadcast sends msg to every listener of the graph. Slow clients drop messages.
func (sm *StreamManager) Broadcast(graphID int64, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	subs, ok := sm.subscribers[graphID]
	if !ok {
		return
	}
	sm.logger.Debug("StreamManager: Broadcasting", "graph_id", graphID, "subscribers", len(subs), "payload_size", len(msg))
	for ch := range subs {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping message", "graph_id", graphID)
		}
	}
}

// Publish encodes a run event and broadcasts it.
func (sm *StreamManager) Publish(graphID int64, ev *domain.RunEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		sm.logger.Error("SSE: encode event failed", "graph_id", graphID, "err", err)
		return
	}
	sm.Broadcast(graphID, string(b))
}

// Hooks forwards orchestrator events to the graph's listeners.
func (sm *StreamManager) Hooks() domain.RunHooks {
	publish := func(_ context.Context, ev *domain.RunEvent) {
		sm.Publish(ev.GraphID, ev)
	}
	return domain.RunHooks{
		OnSubmit:    publish,
		OnStatus:    publish,
		OnTerminal:  publish,
		OnPollError: publish,
		OnStopped:   publish,
	}
}

// SubscribeEvents handles the GET /workflows/{id}/events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := s.graphID(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, unsubscribe := s.Streams.Subscribe(id)
	defer unsubscribe()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: run\ndata: %s\n\n", event)
			flusher.Flush()
		}
	}
}
