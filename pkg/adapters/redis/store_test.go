package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/flowdeck/pkg/adapters/redis"
	"github.com/aretw0/flowdeck/pkg/domain"
	"github.com/aretw0/flowdeck/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunDraftStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := redis.NewFromClient(client, redis.WithTTL(time.Second), redis.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.Draft{Key: "workflow-1", WorkflowID: 1}))
	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, keys, "workflow-1")

	// Key expiry is enforced by redis, the index is pruned against the store clock.
	mr.FastForward(2 * time.Second)
	_, err = store.Load(ctx, "workflow-1")
	assert.ErrorIs(t, err, domain.ErrDraftNotFound)

	now = now.Add(2 * time.Second)
	keys, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.Draft{Key: "new-abc"}))
	assert.True(t, mr.Exists("custom:app:new-abc"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")

	require.NoError(t, store.Delete(ctx, "new-abc"))
	assert.False(t, mr.Exists("custom:app:new-abc"))
	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRedisStore_CorruptDraft(t *testing.T) {
	mr, client := newClient(t)
	require.NoError(t, mr.Set(redis.DefaultPrefix+"workflow-7", "{oops"))

	_, err := redis.NewFromClient(client).Load(context.Background(), "workflow-7")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrDraftNotFound)
}

func TestRedisStore_ServerDown(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)
	mr.Close()

	ctx := context.Background()
	assert.Error(t, store.Save(ctx, &domain.Draft{Key: "workflow-1"}))
	_, err := store.Load(ctx, "workflow-1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrDraftNotFound)
}
