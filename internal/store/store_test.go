package store

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisKeys(t *testing.T) {
	assert.Equal(t, "activity:alice", activityKey("alice"))
	assert.Equal(t, "send_events:alice", eventsChannel("alice"))
}

func TestConnectRedis_BadURL(t *testing.T) {
	_, err := ConnectRedis(context.Background(), "http://not-redis")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse redis url")
}

func TestRedisStore_AllowWithoutLimit(t *testing.T) {
	// nothing listens here; a disabled limit must not touch the server
	s := NewRedisStore(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
	defer s.Close()

	ok, err := s.Allow(context.Background(), "send:alerts", 0, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStore_Unavailable(t *testing.T) {
	s := NewRedisStore(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer s.Close()

	_, err := s.Allow(context.Background(), "send:alerts", 5, time.Minute)
	assert.Error(t, err)
	assert.Error(t, s.Ping(context.Background()))
}
