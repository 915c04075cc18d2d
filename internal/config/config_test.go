package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load("absent.yaml")
	assert.Error(t, err)
}

func TestLoad_FileEnvAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultPath), []byte(`
api:
  base_url: http://backend:9000/api/v1
  timeout: 5s
poll:
  interval: 250ms
  max_polls: 40
drafts:
  backend: redis
redis:
  addr: cache:6379
  ttl: 24h
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FLOWDECK_LOG_LEVEL=debug\nFLOWDECK_POLL_MAX_POLLS=99\n"), 0644))
	t.Setenv("FLOWDECK_POLL_MAX_POLLS", "7")
	t.Setenv("FLOWDECK_REDIS_DB", "2")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://backend:9000/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Poll.Interval)
	assert.Equal(t, 7, cfg.Poll.MaxPolls, "the environment wins over .env and the file")
	assert.Equal(t, DraftsRedis, cfg.Drafts.Backend)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ".flowdeck/drafts", cfg.Drafts.Dir, "unset keys keep their defaults")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "malformed yaml", file: "api: [oops"},
		{name: "unknown backend", file: "drafts:\n  backend: s3\n"},
		{name: "zero interval", file: "poll:\n  interval: 0s\n"},
		{name: "negative max polls", env: map[string]string{"FLOWDECK_POLL_MAX_POLLS": "-1"}},
		{name: "bad duration", env: map[string]string{"FLOWDECK_POLL_INTERVAL": "soon"}},
		{name: "bad number", env: map[string]string{"FLOWDECK_REDIS_DB": "zero"}},
		{name: "short encryption key", env: map[string]string{"FLOWDECK_DRAFTS_ENCRYPTION_KEY": "c2hvcnQ="}},
		{name: "encryption key not base64", env: map[string]string{"FLOWDECK_DRAFTS_ENCRYPTION_KEY": "%%%"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			if tt.file != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultPath), []byte(tt.file), 0644))
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestDraftsConfig_Keys(t *testing.T) {
	active, fallback, err := DraftsConfig{}.Keys()
	require.NoError(t, err)
	assert.Nil(t, active)
	assert.Nil(t, fallback)

	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	active, fallback, err = DraftsConfig{EncryptionKey: key, FallbackKeys: []string{key}}.Keys()
	require.NoError(t, err)
	assert.Len(t, active, 32)
	require.Len(t, fallback, 1)

	_, _, err = DraftsConfig{EncryptionKey: key, FallbackKeys: []string{"c2hvcnQ="}}.Keys()
	assert.ErrorContains(t, err, "drafts.fallback_keys[0]")
}
