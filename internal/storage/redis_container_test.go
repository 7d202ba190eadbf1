package storage

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	testRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisStorageContainer(t *testing.T) {
	testcontainers.SkipIfProviderIsNotHealthy(t)
	c := context.Background()

	redisContainer, err := testRedis.Run(c, "redis:7.4.1-alpine3.20")
	if err != nil {
		t.Fatalf("failed running redis container with error: %s", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(redisContainer); err != nil {
			t.Errorf("failed terminating redis container with error: %s", err)
		}
	}()

	connStr, err := redisContainer.ConnectionString(c)
	if err != nil {
		t.Fatalf("failed getting redis connection string with error: %s", err)
	}
	opts, err := redis.ParseURL(connStr)
	if err != nil {
		t.Fatalf("failed parsing redis connection string with error: %s", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	s := NewRedisStorage(client, time.Hour)
	key := Key("cart-storage", "container")
	want := payload{Items: map[string]int{"v-9": 3}}
	require.NoError(t, s.Save(c, key, want))

	got := payload{}
	ok, err := s.Load(c, key, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}
