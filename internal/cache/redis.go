package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/fortuna/hockeysync/internal/ingest"
	"github.com/fortuna/hockeysync/internal/store"
)

const keyPrefix = "hockeysync"

// RedisCache holds sync cursors and cached read listings.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}

	return NewRedisCacheFromClient(client), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Client returns the underlying Redis client
func (rc *RedisCache) Client() *redis.Client {
	return rc.client
}

// HealthCheck pings Redis to verify connection
func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Delete removes keys
func (rc *RedisCache) Delete(ctx context.Context, keys ...string) error {
	return rc.client.Del(ctx, keys...).Err()
}

// SetJSON stores value encoded as JSON.
func (rc *RedisCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return rc.client.Set(ctx, key, data, ttl).Err()
}

// GetJSON decodes the JSON value at key into target. It reports false on a miss.
func (rc *RedisCache) GetJSON(ctx context.Context, key string, target any) (bool, error) {
	data, err := rc.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := sonic.Unmarshal(data, target); err != nil {
		return false, errors.Wrapf(err, "decode %s", key)
	}
	return true, nil
}

// CursorKey is where the newest competition id seen for a listing is kept.
func CursorKey(source store.Source, mode ingest.Mode) string {
	return fmt.Sprintf("%s:cursor:%s:%s", keyPrefix, source, mode)
}

// MatchesKey caches the match listing of a competition.
func MatchesKey(source store.Source, competitionID string) string {
	return fmt.Sprintf("%s:matches:%s:%s", keyPrefix, source, competitionID)
}

// CompetitionsKey caches the competition listing of a source.
func CompetitionsKey(source store.Source) string {
	return fmt.Sprintf("%s:competitions:%s", keyPrefix, source)
}

// Cursor returns the stop id for the next incremental walk of a listing, or
// "" when the listing has never been walked.
func (rc *RedisCache) Cursor(ctx context.Context, source store.Source, mode ingest.Mode) (string, error) {
	id, err := rc.client.Get(ctx, CursorKey(source, mode)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return id, err
}

// SetCursor records the newest competition id of a listing.
func (rc *RedisCache) SetCursor(ctx context.Context, source store.Source, mode ingest.Mode, id string) error {
	if id == "" {
		return nil
	}
	return rc.client.Set(ctx, CursorKey(source, mode), id, 0).Err()
}
