//go:build integration

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/tazhibayda/profile-service/internal/repo"
	"github.com/tazhibayda/profile-service/internal/session"
)

func newRedis(t *testing.T) *repo.Redis {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)
	rds := repo.NewRedis(opts.Addr)
	require.NoError(t, rds.Ping(ctx))
	t.Cleanup(func() { _ = rds.Close() })
	return rds
}

func TestRedisStore_SaveLoadRewrite(t *testing.T) {
	ctx := context.Background()
	rds := newRedis(t)
	s := session.NewRedisStore(rds.C, session.CookieOptions{TTL: time.Minute})

	c, err := s.Save(ctx, nil, dana)
	require.NoError(t, err)

	got, err := s.Load(ctx, requestWith(c))
	require.NoError(t, err)
	assert.Equal(t, dana, got)

	// rewrite keeps the same opaque id
	renamed := dana
	renamed.Name = "Dana S."
	c2, err := s.Save(ctx, requestWith(c), renamed)
	require.NoError(t, err)
	assert.Equal(t, c.Value, c2.Value)

	got, err = s.Load(ctx, requestWith(c2))
	require.NoError(t, err)
	assert.Equal(t, "Dana S.", got.Name)

	require.NoError(t, s.Delete(ctx, requestWith(c2)))
	_, err = s.Load(ctx, requestWith(c2))
	assert.ErrorIs(t, err, session.ErrNoSession)
}
