package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"webping/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUserExists        = errors.New("user already exists")
	ErrTopicExists       = errors.New("topic already exists")
	ErrDuplicateEndpoint = errors.New("endpoint already registered for this user")
)

const (
	activityTTL = 7 * 24 * time.Hour
	activityMax = 100
)

// Store handles accounts, topics and push subscriptions (SQL).
type Store interface {
	// User methods
	CreateUser(ctx context.Context, username, password, email string) (models.User, error)
	GetUser(ctx context.Context, username string) (models.User, error)
	UpdateUserPassword(ctx context.Context, username, newPasswordHash string) error
	UpdateUserEmail(ctx context.Context, username, email string) error
	UpdateUser2FA(ctx context.Context, username, totpSecret string, enabled bool) error

	// Topic methods
	CreateTopic(ctx context.Context, name, username string) (models.Topic, error)
	GetTopics(ctx context.Context, username string) ([]models.Topic, error)
	DeleteTopic(ctx context.Context, name, username string) error

	// Push subscription methods
	CreatePushSubscription(ctx context.Context, sub models.PushSubscription) (models.PushSubscription, error)
	GetPushSubscriptions(ctx context.Context, username string) ([]models.PushSubscription, error)
	RenamePushSubscription(ctx context.Context, id int, username, name string) error
	DeletePushSubscription(ctx context.Context, id int, username string) error

	// ResolveTopic loads the topic's owner and the owner's subscriptions in
	// one read-only transaction.
	ResolveTopic(ctx context.Context, name string) (models.User, []models.PushSubscription, error)
}

// ActivityStore keeps a short feed of send events per account (Redis).
type ActivityStore interface {
	RecordSend(ctx context.Context, ev models.SendEvent) (models.SendEvent, error)
	RecentSends(ctx context.Context, username string, limit int) ([]models.SendEvent, error)
	Subscribe(ctx context.Context, username string) *redis.PubSub
}

// RateLimiter counts hits per key in fixed windows (Redis).
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(opts *redis.Options) *RedisStore {
	rdb := redis.NewClient(opts)
	return &RedisStore{client: rdb}
}

// ConnectRedis parses a redis:// URL and pings the server.
func ConnectRedis(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	s := NewRedisStore(opts)
	if err := s.Ping(ctx); err != nil {
		_ = s.client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return s, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func activityKey(username string) string {
	return fmt.Sprintf("activity:%s", username)
}

func eventsChannel(username string) string {
	return fmt.Sprintf("send_events:%s", username)
}

func (s *RedisStore) RecordSend(ctx context.Context, ev models.SendEvent) (models.SendEvent, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return models.SendEvent{}, err
	}

	key := activityKey(ev.Username)
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, activityMax-1)
	pipe.Expire(ctx, key, activityTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return models.SendEvent{}, err
	}

	// Publish event for SSE
	if err := s.client.Publish(ctx, eventsChannel(ev.Username), data).Err(); err != nil {
		return ev, fmt.Errorf("failed to publish send event: %w", err)
	}

	return ev, nil
}

func (s *RedisStore) RecentSends(ctx context.Context, username string, limit int) ([]models.SendEvent, error) {
	if limit <= 0 || limit > activityMax {
		limit = activityMax
	}

	vals, err := s.client.LRange(ctx, activityKey(username), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	events := make([]models.SendEvent, 0, len(vals))
	for _, val := range vals {
		var ev models.SendEvent
		if err := json.Unmarshal([]byte(val), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (s *RedisStore) Subscribe(ctx context.Context, username string) *redis.PubSub {
	return s.client.Subscribe(ctx, eventsChannel(username))
}

// Allow increments the counter of the current window and reports whether it
// is still within limit.
func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	bucket := time.Now().UnixNano() / int64(window)
	k := fmt.Sprintf("ratelimit:%s:%d", key, bucket)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return incr.Val() <= int64(limit), nil
}
