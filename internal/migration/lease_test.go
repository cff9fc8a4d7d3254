package migration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRedisLease(t *testing.T) {
	addr := os.Getenv("GRADUATOR_TEST_REDIS")
	if addr == "" {
		t.Skip("GRADUATOR_TEST_REDIS not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	prefix := "graduator-test:lease:" + uuid.NewString() + ":"
	a := NewRedisLease(client, prefix, time.Minute)
	b := NewRedisLease(client, prefix, time.Minute)

	release, ok, err := a.Acquire(ctx, "pool")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = b.Acquire(ctx, "pool")
	require.NoError(t, err)
	require.False(t, ok)

	release()
	releaseB, ok, err := b.Acquire(ctx, "pool")
	require.NoError(t, err)
	require.True(t, ok)

	// a stale release must not drop someone else's lease
	release()
	_, ok, err = a.Acquire(ctx, "pool")
	require.NoError(t, err)
	require.False(t, ok)
	releaseB()
}
