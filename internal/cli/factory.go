// Package cli builds the editor the command line works with and applies operation scripts.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/flowdeck"
	"github.com/aretw0/flowdeck/internal/config"
	"github.com/aretw0/flowdeck/pkg/adapters/file"
	httpAdapter "github.com/aretw0/flowdeck/pkg/adapters/http"
	"github.com/aretw0/flowdeck/pkg/adapters/memory"
	"github.com/aretw0/flowdeck/pkg/adapters/redis"
	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/observability"
	"github.com/aretw0/flowdeck/pkg/persistence/middleware"
	"github.com/aretw0/flowdeck/pkg/ports"
	"github.com/aretw0/flowdeck/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
)

// App is an editor wired from the CLI configuration.
type App struct {
	Editor  *flowdeck.Editor
	API     ports.WorkflowAPI
	Metrics *observability.Metrics

	closers []func() error
}

// AppOption adjusts how the App is built.
type AppOption func(*appOptions)

type appOptions struct {
	api      ports.WorkflowAPI
	reg      prometheus.Registerer
	runHooks []domain.RunHooks
}

// WithAPI replaces the HTTP client built from api.base_url.
func WithAPI(api ports.WorkflowAPI) AppOption {
	return func(o *appOptions) {
		o.api = api
	}
}

// WithRegisterer registers the editor metrics. Without it metrics are collected but not exported.
func WithRegisterer(reg prometheus.Registerer) AppOption {
	return func(o *appOptions) {
		o.reg = reg
	}
}

// WithRunHooks adds execution observers.
func WithRunHooks(hooks domain.RunHooks) AppOption {
	return func(o *appOptions) {
		o.runHooks = append(o.runHooks, hooks)
	}
}

// NewApp initializes an editor with standard CLI conventions: the configured backend,
// draft store and poll settings, metrics hooks and the shared logger. Drafts are sealed
// when drafts.encryption_key is set.
func NewApp(cfg config.Config, logger *slog.Logger, opts ...AppOption) (*App, error) {
	o := appOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{API: o.api}
	if app.API == nil {
		app.API = httpAdapter.NewClient(cfg.API.BaseURL,
			httpAdapter.WithTimeout(cfg.API.Timeout),
			httpAdapter.WithLogger(logger),
		)
	}
	app.Metrics = observability.NewMetrics(o.reg, observability.WithLogger(logger))

	editorOpts := []flowdeck.Option{
		flowdeck.WithLogger(logger),
		flowdeck.WithPollInterval(cfg.Poll.Interval),
		flowdeck.WithMaxPolls(cfg.Poll.MaxPolls),
		flowdeck.WithRunHooks(app.Metrics.RunHooks()),
		flowdeck.WithSessionHooks(app.Metrics.SessionHooks()),
	}
	for _, h := range o.runHooks {
		editorOpts = append(editorOpts, flowdeck.WithRunHooks(h))
	}

	var mws []middleware.Middleware
	active, fallback, err := cfg.Drafts.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}

	var drafts ports.DraftStore
	switch cfg.Drafts.Backend {
	case config.DraftsMemory:
		drafts = memory.NewStore()
	case config.DraftsFile:
		drafts = file.New(cfg.Drafts.Dir)
	case config.DraftsRedis:
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithTTL(cfg.Redis.TTL),
			redis.WithPrefix(cfg.Redis.Prefix),
		)
		app.closers = append(app.closers, store.Close)
		drafts = store
		editorOpts = append(editorOpts, flowdeck.WithLocker(redis.NewLocker(store.Client(), cfg.Redis.Prefix)))
	default:
		return nil, fmt.Errorf("unknown drafts backend %q", cfg.Drafts.Backend)
	}
	editorOpts = append(editorOpts, flowdeck.WithDraftStore(middleware.Wrap(drafts, mws...)))

	app.Editor = flowdeck.New(app.API, editorOpts...)
	return app, nil
}

// SessionFor opens the workflow a script targets, or starts a new one.
func (a *App) SessionFor(ctx context.Context, sc *Script) (*session.Session, error) {
	if sc.Workflow != 0 {
		return a.Editor.Open(ctx, sc.Workflow)
	}
	if sc.Name == "" {
		return nil, errors.New("a script without workflow must set name")
	}
	return a.Editor.Start(sc.Name, sc.Description), nil
}

// Close stops every run and releases connections.
func (a *App) Close() error {
	a.Editor.Close()
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
