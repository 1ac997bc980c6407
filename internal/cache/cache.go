package cache

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

var ErrMiss = errors.New("cache miss")

// Store is a TTL key/value store. Get returns ErrMiss when the key is absent or expired.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps entries in process.
type MemoryStore struct {
	c *gocache.Cache
}

func NewMemory(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &MemoryStore{
		c: gocache.New(ttl, 2*ttl),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, ErrMiss
	}

	b, ok := v.([]byte)
	if !ok {
		return nil, ErrMiss
	}

	return b, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, val []byte) error {
	s.c.Set(key, val, gocache.DefaultExpiration)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.c.Delete(key)
	return nil
}

func (s *MemoryStore) Clear() {
	s.c.Flush()
}
