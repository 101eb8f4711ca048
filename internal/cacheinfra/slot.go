package cacheinfra

import (
	"context"
	"sync/atomic"

	"github.com/goliatone/go-dataset-cache/cache"
)

// slot pairs one key's lock with its entry. A slot is created by an atomic
// get-or-insert in the registry, so a key never has two live locks.
//
// Fields below lock are only touched while holding it. A slot is marked dead
// and dropped from the registry, under its lock, when its entry is evicted;
// callers that were waiting on a dead slot go back to the registry.
type slot struct {
	key   cache.CacheKey
	lock  chan struct{}
	state atomic.Int32

	payload any
	stored  bool
	dead    bool
}

func newSlot(key cache.CacheKey) *slot {
	return &slot{
		key:  key,
		lock: make(chan struct{}, 1),
	}
}

// acquire takes the slot lock or gives up when ctx ends.
func (s *slot) acquire(ctx context.Context) error {
	select {
	case s.lock <- struct{}{}:
		return nil
	default:
	}

	select {
	case s.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *slot) release() {
	<-s.lock
}

func (s *slot) getState() cache.EntryState {
	return cache.EntryState(s.state.Load())
}

func (s *slot) setState(state cache.EntryState) {
	s.state.Store(int32(state))
}
