package data

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedis connects to REDIS_TEST_URL or skips the test
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestRedisBufferRepo_AppendDrain(t *testing.T) {
	client := newTestRedis(t)
	r := NewRedisBufferRepo(client, ":buffer-test", time.Minute)
	t.Cleanup(func() { _ = r.Close() })

	ctx := context.Background()
	chat := "5511000000000@s.whatsapp.net"
	require.NoError(t, r.Clear(ctx, chat))

	n, err := r.Append(ctx, chat, "Oi")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = r.Append(ctx, chat, "Tudo bem?")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ttl, err := client.TTL(ctx, chat+":buffer-test").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	pending, err := r.Peek(ctx, chat)
	require.NoError(t, err)
	assert.Equal(t, []string{"Oi", "Tudo bem?"}, pending)

	items, err := r.Drain(ctx, chat)
	require.NoError(t, err)
	assert.Equal(t, []string{"Oi", "Tudo bem?"}, items)

	exists, err := client.Exists(ctx, chat+":buffer-test").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}

func TestRedisBufferRepo_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	r := NewRedisBufferRepo(client, "", 0)
	defer r.Close()

	ctx := context.Background()
	require.Error(t, r.Ping(ctx))
	_, err := r.Append(ctx, "chat", "Oi")
	require.Error(t, err)
	_, err = r.Drain(ctx, "chat")
	require.Error(t, err)
}
