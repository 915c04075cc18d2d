package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/flowdeck/internal/logging"
	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records editor and run activity as Prometheus collectors.
type Metrics struct {
	RunsSubmitted prometheus.Counter
	RunsFinished  *prometheus.CounterVec
	Polls         prometheus.Counter
	PollErrors    prometheus.Counter
	RunDuration   prometheus.Histogram
	ActiveRuns    prometheus.Gauge
	SessionEvents *prometheus.CounterVec

	logger *slog.Logger

	mu      sync.Mutex
	started map[string]time.Time
}

// MetricsOption configures Metrics.
type MetricsOption func(*Metrics)

// WithLogger logs every hook invocation besides recording it.
func WithLogger(logger *slog.Logger) MetricsOption {
	return func(m *Metrics) {
		m.logger = logger
	}
}

// NewMetrics creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on promhttp.Handler().
func NewMetrics(reg prometheus.Registerer, opts ...MetricsOption) *Metrics {
	m := &Metrics{
		RunsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowdeck_runs_submitted_total",
			Help: "Total number of runs accepted by the backend",
		}),
		RunsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowdeck_runs_finished_total",
			Help: "Total number of runs that stopped being polled, by final status",
		}, []string{"status"}),
		Polls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowdeck_status_polls_total",
			Help: "Total number of successful status polls",
		}),
		PollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowdeck_status_poll_errors_total",
			Help: "Total number of runs abandoned after a failed poll",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flowdeck_run_duration_seconds",
			Help:    "Time from submission to the final status",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		ActiveRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flowdeck_active_runs",
			Help: "Runs currently being polled",
		}),
		SessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowdeck_session_events_total",
			Help: "Edit session events by type",
		}, []string{"type"}),
		logger:  logging.NewNop(),
		started: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	if reg != nil {
		reg.MustRegister(m.RunsSubmitted, m.RunsFinished, m.Polls, m.PollErrors, m.RunDuration, m.ActiveRuns, m.SessionEvents)
	}
	return m
}

// RunHooks returns orchestrator hooks that feed the run collectors.
func (m *Metrics) RunHooks() domain.RunHooks {
	return domain.RunHooks{
		OnSubmit: func(ctx context.Context, e *domain.RunEvent) {
			m.logger.Info("run_submit", "run_id", e.RunID, "graph_id", e.GraphID)
			m.RunsSubmitted.Inc()
			m.ActiveRuns.Inc()
			m.mu.Lock()
			m.started[e.RunID] = e.Timestamp
			m.mu.Unlock()
		},
		OnStatus: func(ctx context.Context, e *domain.RunEvent) {
			m.logger.Debug("run_status", "run_id", e.RunID, "status", e.Status, "poll", e.Poll)
			m.Polls.Inc()
		},
		OnTerminal: func(ctx context.Context, e *domain.RunEvent) {
			m.logger.Info("run_terminal", "run_id", e.RunID, "graph_id", e.GraphID, "status", e.Status)
			m.finish(e)
		},
		OnPollError: func(ctx context.Context, e *domain.RunEvent) {
			m.logger.Warn("run_poll_error", "run_id", e.RunID, "graph_id", e.GraphID, "err", e.Err)
			m.PollErrors.Inc()
			m.finish(e)
		},
		OnStopped: func(ctx context.Context, e *domain.RunEvent) {
			m.logger.Info("run_stopped", "run_id", e.RunID, "graph_id", e.GraphID)
			m.finish(e)
		},
	}
}

// finish records the final status. Runs rejected on submit were never counted as active.
func (m *Metrics) finish(e *domain.RunEvent) {
	m.RunsFinished.WithLabelValues(string(e.Status)).Inc()

	m.mu.Lock()
	start, ok := m.started[e.RunID]
	delete(m.started, e.RunID)
	m.mu.Unlock()
	if !ok {
		return
	}
	m.ActiveRuns.Dec()
	if d := e.Timestamp.Sub(start); d >= 0 {
		m.RunDuration.Observe(d.Seconds())
	}
}

// SessionHooks returns edit session hooks that count events by type.
func (m *Metrics) SessionHooks() domain.SessionHooks {
	record := func(e *domain.SessionEvent) {
		m.SessionEvents.WithLabelValues(string(e.Type)).Inc()
	}
	return domain.SessionHooks{
		OnLoad: func(e *domain.SessionEvent) {
			m.logger.Info("session_load", "workflow_id", e.WorkflowID)
			record(e)
		},
		OnChange: func(e *domain.SessionEvent) {
			m.logger.Debug("session_change", "workflow_id", e.WorkflowID, "op", e.Op, "dirty", e.Dirty)
			record(e)
		},
		OnSave: func(e *domain.SessionEvent) {
			m.logger.Info("session_save", "workflow_id", e.WorkflowID)
			record(e)
		},
		OnSaveError: func(e *domain.SessionEvent) {
			m.logger.Error("session_save_error", "workflow_id", e.WorkflowID, "err", e.Err)
			record(e)
		},
		OnOrphanEdge: func(e *domain.SessionEvent) {
			m.logger.Warn("session_orphan_edge", "workflow_id", e.WorkflowID, "op", e.Op)
			record(e)
		},
	}
}
