package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ComputeFn loads the collection for a normalized dataset selection. It is
// called at most once concurrently per key and must not cache on its own.
type ComputeFn[T any] func(ctx context.Context, datasets []DatasetID) (T, error)

// Computation is the untyped form of a ComputeFn that DataProvider
// implementations work with. It also knows how to serialize its payload for
// the persistence layer.
type Computation interface {
	Compute(ctx context.Context, datasets []DatasetID) (any, error)
	Encode(payload any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// DataProvider memoizes computations keyed by entity type and dataset
// selection and supports dataset, module and global invalidation.
// It is exported so alternate implementations can be plugged behind the
// generic GetData helper.
type DataProvider interface {
	GetData(ctx context.Context, entityType EntityType, datasets []DatasetID, c Computation) (any, error)
	ClearCacheForDataset(ctx context.Context, datasets ...DatasetID) error
	ClearCacheForModule(ctx context.Context, module Module) error
	ClearAllCacheFiles(ctx context.Context) error
}

// Store persists one encoded payload per key. Implementations do not
// serialize callers: the provider guarantees a single writer per key.
type Store interface {
	Put(ctx context.Context, key CacheKey, payload []byte) error
	Get(ctx context.Context, key CacheKey) ([]byte, bool, error)
	Remove(ctx context.Context, key CacheKey) error
	RemoveAll(ctx context.Context, match func(CacheKey) bool) error
	Keys(ctx context.Context) ([]CacheKey, error)
	Close() error
}

// EntryState is the lifecycle state of a cache entry.
type EntryState int32

const (
	StateEmpty EntryState = iota
	StateComputing
	StateReady
)

func (s EntryState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateComputing:
		return "computing"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// EntryInfo is a diagnostic snapshot of one registry entry.
type EntryInfo struct {
	Key   CacheKey
	State EntryState
}

// GetData is the type-safe entry point over a DataProvider. The returned
// value is shared between callers and must be treated as read-only.
func GetData[T any](ctx context.Context, p DataProvider, entityType EntityType, datasets []DatasetID, compute ComputeFn[T]) (T, error) {
	var zero T
	if compute == nil {
		return zero, errors.New("cache: compute function is nil")
	}

	result, err := p.GetData(ctx, entityType, datasets, typedComputation[T]{fn: compute})
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}

	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%w: cached %s payload is %T, want %T", ErrTypeMismatch, entityType, result, zero)
	}
	return typed, nil
}

// typedComputation adapts a ComputeFn to the Computation interface, using
// msgpack for the persisted form.
type typedComputation[T any] struct {
	fn ComputeFn[T]
}

func (c typedComputation[T]) Compute(ctx context.Context, datasets []DatasetID) (any, error) {
	return c.fn(ctx, datasets)
}

func (c typedComputation[T]) Encode(payload any) ([]byte, error) {
	return msgpack.Marshal(payload)
}

func (c typedComputation[T]) Decode(data []byte) (any, error) {
	var v T
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
