package cache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/verilabel-ai/verilabel/internal/config"
)

// TestRedisClient_RoundTrip exercises the Redis driver against a disposable
// container. Skipped when no container runtime is reachable.
func TestRedisClient_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	container, err := tcredis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("container runtime unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := NewRedisClient(config.RedisConfig{
		Addr:     strings.TrimPrefix(endpoint, "redis://"),
		PoolSize: 4,
	})
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(ctx, "doc-digest", []byte(`{"extracted_text":"BATCH AB-2024-123456"}`), time.Minute))

	val, err := client.Get(ctx, "doc-digest")
	require.NoError(t, err)
	require.Contains(t, string(val), "BATCH AB-2024-123456")

	require.NoError(t, client.Delete(ctx, "doc-digest"))

	_, err = client.Get(ctx, "doc-digest")
	require.True(t, errors.Is(err, ErrCacheMiss))
}
