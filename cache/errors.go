package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey is returned when a key cannot be built, before any locking.
	ErrInvalidKey = errors.New("invalid cache key")
	// ErrCompute matches every *ComputeError.
	ErrCompute = errors.New("compute failed")
	// ErrStoreIO matches every *StoreIOError.
	ErrStoreIO = errors.New("cache store i/o failed")
	// ErrClosed is returned by a provider after Close.
	ErrClosed = errors.New("cache provider closed")
	// ErrTypeMismatch is returned by GetData when the cached payload for a key
	// was produced with a different Go type.
	ErrTypeMismatch = errors.New("cached payload type mismatch")
)

// ComputeError wraps a failure of the compute function for a key. It only
// reaches the caller that triggered the computation; nothing is cached.
type ComputeError struct {
	Key CacheKey
	Err error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("compute %s: %v", e.Key, e.Err)
}

func (e *ComputeError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrCompute) match.
func (e *ComputeError) Is(target error) bool {
	return target == ErrCompute
}

// StoreIOError reports a persistence failure. Op is one of "put", "get",
// "remove", "decode", "encode" or "keys".
type StoreIOError struct {
	Op  string
	Key CacheKey
	Err error
}

func (e *StoreIOError) Error() string {
	if e.Key.IsZero() {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreIOError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrStoreIO) match.
func (e *StoreIOError) Is(target error) bool {
	return target == ErrStoreIO
}

// NewStoreIOError is a helper for Store implementations. A nil err yields nil.
func NewStoreIOError(op string, key CacheKey, err error) error {
	if err == nil {
		return nil
	}
	return &StoreIOError{Op: op, Key: key, Err: err}
}
