package debounce

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "automations:debounce:"

// RedisGate shares debounce windows between processes with SET NX PX.
type RedisGate struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisGate(client redis.UniversalClient, prefix string) *RedisGate {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}

	return &RedisGate{client: client, prefix: prefix}
}

// NewRedisGateFromURL connects to redisURL and verifies the connection.
func NewRedisGateFromURL(ctx context.Context, redisURL string) (*RedisGate, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisGate(client, ""), nil
}

func (g *RedisGate) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}

	acquired, err := g.client.SetNX(ctx, g.prefix+key, 1, window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire debounce window: %w", err)
	}

	return acquired, nil
}

func (g *RedisGate) Close() error {
	return g.client.Close()
}
