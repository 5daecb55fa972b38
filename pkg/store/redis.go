package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultRedisPrefix = "3t-vi:progress:"
	DefaultRedisAddr   = "localhost:6379"
)

// RedisStore keeps each agent in a hash with params and epsilon fields.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// OpenRedis connects to addr and checks the connection.
func OpenRedis(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("store: connect to redis at %s: %w", addr, err)
	}
	return NewRedisStore(client, ""), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Load(ctx context.Context, key string) (Record, error) {
	fields, err := s.client.HGetAll(ctx, s.prefix+key).Result()
	if err != nil {
		return Record{}, fmt.Errorf("store: load %s: %w", key, err)
	}
	params, ok := fields["params"]
	if !ok {
		return Record{}, ErrNotFound
	}
	text, ok := fields["epsilon"]
	if !ok {
		return Record{}, ErrNotFound
	}
	epsilon, err := parseEpsilon(text)
	if err != nil {
		return Record{}, err
	}
	return Record{Params: []byte(params), Epsilon: epsilon}, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, rec Record) error {
	err := s.client.HSet(ctx, s.prefix+key,
		"params", rec.Params,
		"epsilon", formatEpsilon(rec.Epsilon),
	).Err()
	if err != nil {
		return fmt.Errorf("store: save %s: %w", key, err)
	}
	return nil
}
