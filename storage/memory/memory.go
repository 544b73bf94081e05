// Package memory provides an in-memory storage backend on top of
// github.com/hashicorp/golang-lru/v2. Expired items are evicted lazily on
// read; the LRU bounds total memory.
package memory

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ggoodman/mcp-client-go/storage"
)

// DefaultMaxItems bounds the cache when no explicit size is given.
const DefaultMaxItems = 1024

// Storage implements storage.Storage in process memory.
type Storage struct {
	cache *lru.Cache[string, *storage.Item]
}

var _ storage.Storage = (*Storage)(nil)

// New creates a memory store holding at most maxItems entries. A maxItems
// of zero or less uses DefaultMaxItems.
func New(maxItems int) (*Storage, error) {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	cache, err := lru.New[string, *storage.Item](maxItems)
	if err != nil {
		return nil, fmt.Errorf("create LRU cache: %w", err)
	}
	return &Storage{cache: cache}, nil
}

func (s *Storage) Get(ctx context.Context, key string) (*storage.Item, error) {
	item, ok := s.cache.Get(key)
	if !ok {
		return nil, nil
	}
	if item.IsExpired() {
		s.cache.Remove(key)
		return nil, nil
	}
	return item, nil
}

func (s *Storage) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	item := &storage.Item{
		Data:      append([]byte(nil), data...),
		CreatedAt: time.Now(),
	}
	if ttl > 0 {
		exp := time.Now().Add(ttl)
		item.ExpiresAt = &exp
	}
	s.cache.Add(key, item)
	return nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	s.cache.Remove(key)
	return nil
}

func (s *Storage) Close() error {
	s.cache.Purge()
	return nil
}
