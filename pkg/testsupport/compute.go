package testsupport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-dataset-cache/cache"
)

// ErrInjected is returned by FaultyStore operations that were set to fail.
var ErrInjected = errors.New("injected store failure")

// Counter wraps a compute function and counts its invocations. Pass
// counter.Compute wherever a cache.ComputeFn is expected.
type Counter[T any] struct {
	fn    cache.ComputeFn[T]
	delay time.Duration
	calls atomic.Int64

	mu   sync.Mutex
	seen [][]cache.DatasetID
}

// NewCounter wraps fn. A nil fn returns the zero value of T.
func NewCounter[T any](fn cache.ComputeFn[T]) *Counter[T] {
	if fn == nil {
		fn = func(context.Context, []cache.DatasetID) (T, error) {
			var zero T
			return zero, nil
		}
	}
	return &Counter[T]{fn: fn}
}

// Returning builds a Counter whose computation always yields v.
func Returning[T any](v T) *Counter[T] {
	return NewCounter(func(context.Context, []cache.DatasetID) (T, error) {
		return v, nil
	})
}

// WithDelay makes every call sleep for d before computing. The sleep ignores
// ctx so tests can observe computations that outlive their callers.
func (c *Counter[T]) WithDelay(d time.Duration) *Counter[T] {
	c.delay = d
	return c
}

func (c *Counter[T]) Compute(ctx context.Context, datasets []cache.DatasetID) (T, error) {
	c.calls.Add(1)

	c.mu.Lock()
	c.seen = append(c.seen, append([]cache.DatasetID(nil), datasets...))
	c.mu.Unlock()

	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.fn(ctx, datasets)
}

// Calls returns the number of invocations so far.
func (c *Counter[T]) Calls() int {
	return int(c.calls.Load())
}

// Seen returns the dataset selections the computation was called with.
func (c *Counter[T]) Seen() [][]cache.DatasetID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]cache.DatasetID(nil), c.seen...)
}

// FaultyStore wraps a cache.Store and fails selected operations on demand.
type FaultyStore struct {
	cache.Store

	FailPut    atomic.Bool
	FailGet    atomic.Bool
	FailRemove atomic.Bool

	puts    atomic.Int64
	gets    atomic.Int64
	removes atomic.Int64
}

func NewFaultyStore(inner cache.Store) *FaultyStore {
	return &FaultyStore{Store: inner}
}

func (s *FaultyStore) Put(ctx context.Context, key cache.CacheKey, payload []byte) error {
	s.puts.Add(1)
	if s.FailPut.Load() {
		return ErrInjected
	}
	return s.Store.Put(ctx, key, payload)
}

func (s *FaultyStore) Get(ctx context.Context, key cache.CacheKey) ([]byte, bool, error) {
	s.gets.Add(1)
	if s.FailGet.Load() {
		return nil, false, ErrInjected
	}
	return s.Store.Get(ctx, key)
}

func (s *FaultyStore) Remove(ctx context.Context, key cache.CacheKey) error {
	s.removes.Add(1)
	if s.FailRemove.Load() {
		return ErrInjected
	}
	return s.Store.Remove(ctx, key)
}

// Puts returns the number of Put calls, failed ones included.
func (s *FaultyStore) Puts() int { return int(s.puts.Load()) }

// Gets returns the number of Get calls, failed ones included.
func (s *FaultyStore) Gets() int { return int(s.gets.Load()) }

// Removes returns the number of Remove calls, failed ones included.
func (s *FaultyStore) Removes() int { return int(s.removes.Load()) }
