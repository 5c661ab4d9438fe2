package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bilgisen/newswire/internal/config"
	"github.com/bilgisen/newswire/internal/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisInterface is what the ingestion pipeline needs from Redis.
type RedisInterface interface {
	Close() error
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, name, token string) error
	Resolution(ctx context.Context, rawURL string) (string, bool, error)
	StoreResolution(ctx context.Context, rawURL, resolved string, ttl time.Duration) error
}

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisClient struct {
	client *redis.Client
	prefix string
}

func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return New(client, cfg.RedisPrefix), nil
}

// New wraps an existing go-redis client.
func New(client *redis.Client, prefix string) *RedisClient {
	return &RedisClient{
		client: client,
		prefix: prefix,
	}
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func (r *RedisClient) lockKey(name string) string {
	return r.prefix + "lock:" + name
}

func (r *RedisClient) resolutionKey(rawURL string) string {
	return r.prefix + "resolved:" + utils.HashURL(rawURL)
}

// AcquireLock takes the named lock for ttl. ok is false when another holder
// owns it; that is not an error.
func (r *RedisClient) AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.lockKey(name), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis setnx error: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (r *RedisClient) ReleaseLock(ctx context.Context, name, token string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.lockKey(name)}, token).Err(); err != nil {
		return fmt.Errorf("redis release lock error: %w", err)
	}
	return nil
}

func (r *RedisClient) Resolution(ctx context.Context, rawURL string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.resolutionKey(rawURL)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get error: %w", err)
	}
	return val, true, nil
}

func (r *RedisClient) StoreResolution(ctx context.Context, rawURL, resolved string, ttl time.Duration) error {
	return r.client.Set(ctx, r.resolutionKey(rawURL), resolved, ttl).Err()
}
