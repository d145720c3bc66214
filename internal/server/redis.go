package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/njoerd114/medtrack/internal/model"
)

// RedisStore keeps the document as a JSON string under one Redis key. A
// missing key reads as an empty document.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr, key string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to Redis at %q: %w", addr, err)
	}
	return &RedisStore{client: client, key: key}, nil
}

func (r *RedisStore) Load(ctx context.Context) (model.Snapshot, error) {
	b, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Snapshot{}.Normalize(), nil
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("reading %q from Redis: %w", r.key, err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("decoding %q: %w", r.key, err)
	}
	return snap.Normalize(), nil
}

func (r *RedisStore) Save(ctx context.Context, snap model.Snapshot) error {
	b, err := json.Marshal(snap.Normalize())
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	if err := r.client.Set(ctx, r.key, b, 0).Err(); err != nil {
		return fmt.Errorf("writing %q to Redis: %w", r.key, err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
