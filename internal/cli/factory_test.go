package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/flowdeck/internal/config"
	"github.com/aretw0/flowdeck/internal/logging"
	"github.com/aretw0/flowdeck/pkg/adapters/file"
	httpAdapter "github.com/aretw0/flowdeck/pkg/adapters/http"
	"github.com/aretw0/flowdeck/pkg/adapters/redis"
	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewApp_DraftBackends(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name   string
		mutate func(*config.Config)
		check  func(*testing.T, *App)
	}{
		{
			name:   "File",
			mutate: func(c *config.Config) { c.Drafts.Dir = t.TempDir() },
			check: func(t *testing.T, app *App) {
				assert.IsType(t, &file.Store{}, app.Editor.Sessions().Drafts())
			},
		},
		{
			name: "Redis",
			mutate: func(c *config.Config) {
				c.Drafts.Backend = config.DraftsRedis
				c.Redis.Addr = mr.Addr()
				c.Redis.Prefix = "test:"
			},
			check: func(t *testing.T, app *App) {
				store, ok := app.Editor.Sessions().Drafts().(*redis.Store)
				require.True(t, ok)
				require.NoError(t, store.Save(context.Background(), &domain.Draft{Key: "workflow-1"}))
				assert.True(t, mr.Exists("test:workflow-1"))
			},
		},
		{
			name: "Encrypted File",
			mutate: func(c *config.Config) {
				c.Drafts.Dir = t.TempDir()
				c.Drafts.EncryptionKey = base64.StdEncoding.EncodeToString(make([]byte, 32))
			},
			check: func(t *testing.T, app *App) {
				ctx := context.Background()
				store := app.Editor.Sessions().Drafts()
				assert.NotContains(t, fmt.Sprintf("%T", store), "file.Store")
				require.NoError(t, store.Save(ctx, &domain.Draft{Key: "workflow-1", Name: "Secret"}))

				loaded, err := store.Load(ctx, "workflow-1")
				require.NoError(t, err)
				assert.Equal(t, "Secret", loaded.Name)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			app, err := NewApp(cfg, logging.NewNop())
			require.NoError(t, err)
			defer app.Close()
			tt.check(t, app)
		})
	}
}

func TestNewApp_DefaultsToHTTPClient(t *testing.T) {
	cfg := config.Default()
	cfg.Drafts.Backend = config.DraftsMemory
	cfg.API.BaseURL = "http://backend.test/api/v1/"

	app, err := NewApp(cfg, logging.NewNop())
	require.NoError(t, err)
	defer app.Close()

	client, ok := app.API.(*httpAdapter.Client)
	require.True(t, ok)
	assert.Equal(t, "http://backend.test/api/v1", client.BaseURL())
}

func TestNewApp_RegistersMetrics(t *testing.T) {
	cfg := config.Default()
	cfg.Drafts.Backend = config.DraftsMemory
	reg := prometheus.NewRegistry()

	app, err := NewApp(cfg, logging.NewNop(), WithRegisterer(reg))
	require.NoError(t, err)
	defer app.Close()

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewApp_UnknownDraftBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Drafts.Backend = "s3"
	_, err := NewApp(cfg, logging.NewNop())
	assert.ErrorContains(t, err, `unknown drafts backend "s3"`)
}
