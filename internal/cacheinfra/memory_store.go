package cacheinfra

import (
	"context"
	"sort"

	"github.com/goliatone/go-dataset-cache/cache"
	"github.com/viccon/sturdyc"
)

var _ cache.Store = (*MemoryStore)(nil)

type memoryRecord struct {
	key  cache.CacheKey
	data []byte
}

// MemoryStore is a Store backed by a sturdyc client. Records are keyed by the
// key identity, so distinct keys never collide. Records may be dropped by the
// client when it reaches capacity or when their TTL ends; the provider treats
// that like any other missing record.
type MemoryStore struct {
	client *sturdyc.Client[memoryRecord]
}

// NewMemoryStore validates cfg and creates the sturdyc client.
func NewMemoryStore(cfg cache.MemoryConfig) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []sturdyc.Option
	if cfg.EvictionInterval > 0 {
		opts = append(opts, sturdyc.WithEvictionInterval(cfg.EvictionInterval))
	}

	client := sturdyc.New[memoryRecord](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		opts...,
	)
	return &MemoryStore{client: client}, nil
}

func (s *MemoryStore) Put(ctx context.Context, key cache.CacheKey, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return cache.NewStoreIOError("put", key, err)
	}
	s.client.Set(key.String(), memoryRecord{key: key, data: cloneBytes(payload)})
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key cache.CacheKey) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, cache.NewStoreIOError("get", key, err)
	}
	rec, ok := s.client.Get(key.String())
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(rec.data), true, nil
}

func (s *MemoryStore) Remove(ctx context.Context, key cache.CacheKey) error {
	s.client.Delete(key.String())
	return nil
}

func (s *MemoryStore) RemoveAll(ctx context.Context, match func(cache.CacheKey) bool) error {
	for _, id := range s.client.ScanKeys() {
		rec, ok := s.client.Get(id)
		if ok && match(rec.key) {
			s.client.Delete(id)
		}
	}
	return nil
}

func (s *MemoryStore) Keys(ctx context.Context) ([]cache.CacheKey, error) {
	ids := s.client.ScanKeys()
	sort.Strings(ids)

	keys := make([]cache.CacheKey, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.client.Get(id); ok {
			keys = append(keys, rec.key)
		}
	}
	return keys, nil
}

// Size returns the number of records held by the client.
func (s *MemoryStore) Size() int {
	return s.client.Size()
}

func (s *MemoryStore) Close() error {
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
