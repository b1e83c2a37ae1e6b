package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jpch89/the5fire-Django/internal/common/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAndReadStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(&config.RedisConfig{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, Ping(ctx, client))

	_, err := PublishToStream(ctx, client, "log", map[string]any{
		"user_id":   int64(7),
		"object_id": 3,
		"flag":      true,
		"payload":   map[string]string{"name": "golang"},
	})
	require.NoError(t, err)

	msgs, err := ReadStream(ctx, client, "log")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "7", msgs[0].Values["user_id"])
	assert.Equal(t, "3", msgs[0].Values["object_id"])
	assert.Equal(t, "true", msgs[0].Values["flag"])
	assert.JSONEq(t, `{"name":"golang"}`, msgs[0].Values["payload"])
}

func TestReadStream_Empty(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedisClient(&config.RedisConfig{Addr: mr.Addr()})
	defer client.Close()

	msgs, err := ReadStream(context.Background(), client, "missing")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
