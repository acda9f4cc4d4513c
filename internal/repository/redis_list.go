package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type RedisList struct {
	client *redis.Client
}

// NewRedisList parses url and builds a client. It does not dial; go-redis
// connects lazily and reconnects on its own, so an unreachable server only
// shows up as per-call errors.
func NewRedisList(url string) (*RedisList, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisList{client: redis.NewClient(opts)}, nil
}

func NewRedisListFromClient(client *redis.Client) *RedisList {
	return &RedisList{client: client}
}

func (r *RedisList) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisList) Push(ctx context.Context, key string, value []byte) error {
	if err := r.client.RPush(ctx, key, value).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	return nil
}

func (r *RedisList) Range(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	vals, err := r.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		out = append(out, []byte(v))
	}
	return out, nil
}

func (r *RedisList) Len(ctx context.Context, key string) (int64, error) {
	n, err := r.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("llen %s: %w", key, err)
	}
	return n, nil
}

func (r *RedisList) Close() error {
	return r.client.Close()
}
