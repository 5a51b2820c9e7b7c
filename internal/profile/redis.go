package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps all profiles in one Redis hash, one JSON value per field.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix sets the key prefix. Default is "voiceapi".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a Redis-backed profile store.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: "voiceapi"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key() string { return s.prefix + ":profiles" }

// Seed writes the default presets when the hash does not exist yet.
func (s *RedisStore) Seed(ctx context.Context) error {
	n, err := s.client.Exists(ctx, s.key()).Result()
	if err != nil {
		return fmt.Errorf("redis exists failed: %w", err)
	}
	if n > 0 {
		return nil
	}

	fields := make(map[string]any, 4)
	for name, p := range Defaults() {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal profile: %w", err)
		}
		fields[name] = data
	}
	if err := s.client.HSet(ctx, s.key(), fields).Err(); err != nil {
		return fmt.Errorf("redis hset failed: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) (map[string]Params, error) {
	raw, err := s.client.HGetAll(ctx, s.key()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	out := make(map[string]Params, len(raw))
	for name, v := range raw {
		var p Params
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal profile %s: %w", name, err)
		}
		out[name] = p
	}
	return out, nil
}

func (s *RedisStore) Get(ctx context.Context, name string) (Params, error) {
	data, err := s.client.HGet(ctx, s.key(), name).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Params{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Params{}, fmt.Errorf("redis hget failed: %w", err)
	}

	var p Params
	if err := json.Unmarshal(data, &p); err != nil {
		return Params{}, fmt.Errorf("failed to unmarshal profile %s: %w", name, err)
	}
	return p, nil
}

func (s *RedisStore) Put(ctx context.Context, name string, p Params) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := s.client.HSet(ctx, s.key(), name, data).Err(); err != nil {
		return fmt.Errorf("redis hset failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, name string) error {
	n, err := s.client.HDel(ctx, s.key(), name).Result()
	if err != nil {
		return fmt.Errorf("redis hdel failed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
