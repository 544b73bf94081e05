// Package redis provides a Redis-backed storage backend so capability
// caches survive process restarts and can be shared between hosts.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/ggoodman/mcp-client-go/storage"
)

// Config for the Redis backend. Defaults can be loaded via envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. ENV: MCPCLIENT_CACHE_KEY_PREFIX
	KeyPrefix string `env:"MCPCLIENT_CACHE_KEY_PREFIX,default=mcpclient:cache:"`
	// Client, when set, is used instead of dialing RedisAddr.
	Client *redis.Client
}

// Storage implements storage.Storage over Redis. Expiry is delegated to
// Redis TTLs; the item metadata travels in the stored JSON envelope.
type Storage struct {
	client    *redis.Client
	keyPrefix string
}

var _ storage.Storage = (*Storage)(nil)

// New builds a Redis-backed store and verifies connectivity.
func New(cfg Config) (*Storage, error) {
	cl := cfg.Client
	if cl == nil {
		addr := cfg.RedisAddr
		if addr == "" {
			addr = "localhost:6379"
		}
		cl = redis.NewClient(&redis.Options{Addr: addr})
	}
	if err := cl.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "mcpclient:cache:"
	}
	return &Storage{client: cl, keyPrefix: prefix}, nil
}

// NewFromEnv builds a store using envdecode to populate Config.
func NewFromEnv() (*Storage, error) {
	var cfg Config
	_ = envdecode.Decode(&cfg)
	return New(cfg)
}

type envelope struct {
	Data      []byte     `json:"data"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func (s *Storage) key(key string) string { return s.keyPrefix + key }

func (s *Storage) Get(ctx context.Context, key string) (*storage.Item, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("redis get: decode envelope: %w", err)
	}
	item := &storage.Item{Data: env.Data, CreatedAt: env.CreatedAt, ExpiresAt: env.ExpiresAt}
	if item.IsExpired() {
		_ = s.client.Del(context.WithoutCancel(ctx), s.key(key)).Err()
		return nil, nil
	}
	return item, nil
}

func (s *Storage) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	env := envelope{Data: data, CreatedAt: time.Now()}
	var expiry time.Duration
	if ttl > 0 {
		exp := time.Now().Add(ttl)
		env.ExpiresAt = &exp
		expiry = ttl
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("redis set: encode envelope: %w", err)
	}
	if err := s.client.Set(ctx, s.key(key), raw, expiry).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (s *Storage) Close() error { return s.client.Close() }
