package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
	prefix string
	ctx    context.Context
	cancel func()
}

func NewRedisStore(opts *redis.Options, prefix string) (*RedisStore, error) {
	client := redis.NewClient(opts)

	ctx, cancel := context.WithCancel(context.Background())

	store := &RedisStore{
		client: client,
		prefix: prefix,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := store.client.Ping(ctx).Err(); err != nil {
		cancel()
		client.Close()
		return nil, err
	}

	return store, nil
}

func (st *RedisStore) key(k string) string {
	return st.prefix + k
}

func (st *RedisStore) Get(key string) (string, bool) {
	data, err := st.client.Get(st.ctx, st.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		log.Printf("Failed to get %s from Redis: %v", key, err)
		return "", false
	}
	return data, true
}

func (st *RedisStore) Put(key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("invalid ttl %v for %s", ttl, key)
	}
	if err := st.client.Set(st.ctx, st.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save %s to Redis: %w", key, err)
	}
	return nil
}

// TTL reports the time left before key expires.
func (st *RedisStore) TTL(key string) (time.Duration, bool) {
	ttl, err := st.client.TTL(st.ctx, st.key(key)).Result()
	if err != nil || ttl <= 0 {
		return 0, false
	}
	return ttl, true
}

func (st *RedisStore) Close() error {
	st.cancel()
	return st.client.Close()
}
