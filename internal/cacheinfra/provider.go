package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-dataset-cache/cache"
	"github.com/hashicorp/go-multierror"
	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var _ cache.DataProvider = (*Provider)(nil)

// Provider is the dataset computation cache. It memoizes computations per
// key with single-flight semantics and evicts entries per dataset, per
// module or globally.
//
// Locking is per key: a computation holds only its own key's lock, so
// callers for other keys never wait on it. Clear operations take one key
// lock at a time and wait for an in-flight computation to finish before
// evicting its result.
type Provider struct {
	slots  *xsync.MapOf[string, *slot]
	store  cache.Store
	strict bool

	// closeMu orders Close against computations being started, so every
	// computation that passed the closed check is counted in inFlight.
	closeMu  sync.RWMutex
	closed   atomic.Bool
	inFlight sync.WaitGroup

	logger  *zap.Logger
	metrics providerMetrics
	tracer  trace.Tracer
}

type computeResult struct {
	payload any
	err     error
}

// NewProvider creates a provider persisting ready entries to store.
//
// With WithRestore(true) the records already in the store are registered as
// restorable entries; otherwise the store is purged so records from a
// previous run can never be served.
func NewProvider(ctx context.Context, store cache.Store, opts ...Option) (*Provider, error) {
	if store == nil {
		return nil, errors.New("cacheinfra: nil store")
	}

	o, err := getOpts(opts)
	if err != nil {
		return nil, err
	}

	metrics, err := setupProviderMetrics(o.meterProvider.Meter(instrumentationName))
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	p := &Provider{
		slots:   xsync.NewMapOf[string, *slot](),
		store:   store,
		strict:  o.strictStore,
		logger:  o.logger,
		metrics: metrics,
		tracer:  o.tracerProvider.Tracer(instrumentationName),
	}

	if o.restore {
		keys, err := store.Keys(ctx)
		if err != nil {
			return nil, fmt.Errorf("restore cache entries: %w", err)
		}
		for _, key := range keys {
			s := newSlot(key)
			s.stored = true
			p.slots.Store(key.String(), s)
		}
		p.logger.Info("restored cache entries", zap.Int("count", len(keys)))
	} else {
		if err := store.RemoveAll(ctx, func(cache.CacheKey) bool { return true }); err != nil {
			return nil, fmt.Errorf("purge cache store: %w", err)
		}
	}

	return p, nil
}

// GetData returns the payload cached for (entityType, datasets), computing it
// with c when absent. Concurrent callers for the same key share a single
// computation. If ctx ends while the caller waits, GetData returns ctx.Err()
// and a computation already started still completes and populates the cache.
func (p *Provider) GetData(ctx context.Context, entityType cache.EntityType, datasets []cache.DatasetID, c cache.Computation) (any, error) {
	key, err := cache.NewCacheKey(entityType, datasets...)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errors.New("cacheinfra: nil computation")
	}

	id := key.String()
	attrs := metric.WithAttributes(attribute.String("entity_type", string(entityType)))

	for {
		if p.closed.Load() {
			return nil, cache.ErrClosed
		}

		s, _ := p.slots.LoadOrCompute(id, func() *slot { return newSlot(key) })
		if err := s.acquire(ctx); err != nil {
			return nil, err
		}

		if s.dead {
			s.release()
			continue
		}

		if s.getState() == cache.StateReady {
			payload := s.payload
			s.release()
			p.metrics.hits.Add(ctx, 1, attrs)
			p.logger.Debug("cache hit", zap.String("key", id))
			return payload, nil
		}

		if s.stored {
			if payload, ok := p.restore(ctx, s, c); ok {
				s.release()
				p.metrics.hits.Add(ctx, 1, attrs)
				p.logger.Debug("cache hit from store", zap.String("key", id))
				return payload, nil
			}
		}

		p.metrics.misses.Add(ctx, 1, attrs)
		p.logger.Debug("cache miss", zap.String("key", id))
		return p.compute(ctx, s, c)
	}
}

// restore loads a persisted record into s. The caller holds the slot lock.
// Any failure is a cache miss.
//
// s.stored stays set while the store may still hold a record for the key, so
// a later clear or failed computation removes it.
func (p *Provider) restore(ctx context.Context, s *slot, c cache.Computation) (any, bool) {
	data, found, err := p.store.Get(ctx, s.key)
	if err != nil {
		p.storeFailed(ctx, "get", s.key, err)
		return nil, false
	}
	if !found {
		s.stored = false
		return nil, false
	}

	payload, err := c.Decode(data)
	if err != nil {
		p.storeFailed(ctx, "decode", s.key, cache.NewStoreIOError("decode", s.key, err))
		_ = p.removeStored(ctx, s)
		return nil, false
	}

	s.payload = payload
	s.setState(cache.StateReady)
	return payload, true
}

// removeStored deletes the persisted record of s, if any. The caller holds
// the slot lock.
func (p *Provider) removeStored(ctx context.Context, s *slot) error {
	if !s.stored {
		return nil
	}
	if err := p.store.Remove(ctx, s.key); err != nil {
		p.storeFailed(ctx, "remove", s.key, err)
		return err
	}
	s.stored = false
	return nil
}

// compute runs c for the slot whose lock the caller holds. Ownership of the
// lock passes to the computing goroutine, which releases it once the result
// is published or the entry evicted.
func (p *Provider) compute(ctx context.Context, s *slot, c cache.Computation) (any, error) {
	if !p.startCompute() {
		s.release()
		return nil, cache.ErrClosed
	}
	s.setState(cache.StateComputing)

	done := make(chan computeResult, 1)
	go p.runCompute(context.WithoutCancel(ctx), s, c, done)

	select {
	case r := <-done:
		return r.payload, r.err
	case <-ctx.Done():
		p.logger.Debug("caller stopped waiting for computation", zap.String("key", s.key.String()))
		return nil, ctx.Err()
	}
}

// startCompute registers a computation unless the provider is closed.
func (p *Provider) startCompute() bool {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed.Load() {
		return false
	}
	p.inFlight.Add(1)
	return true
}

func (p *Provider) runCompute(ctx context.Context, s *slot, c cache.Computation, done chan<- computeResult) {
	defer p.inFlight.Done()
	defer s.release()

	entity := attribute.String("entity_type", string(s.key.EntityType()))
	ctx, span := p.tracer.Start(ctx, "Provider.compute", trace.WithAttributes(
		entity,
		attribute.String("cache.key", s.key.String()),
	))
	defer span.End()

	p.metrics.computes.Add(ctx, 1, metric.WithAttributes(entity))
	start := time.Now()
	payload, err := callCompute(ctx, s.key, c)
	p.metrics.computeDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(entity))

	if err != nil {
		_ = p.removeStored(ctx, s)
		p.evictLocked(s)
		p.metrics.computeErrors.Add(ctx, 1, metric.WithAttributes(entity))
		p.logger.Error("computation failed", zap.String("key", s.key.String()), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "compute failed")
		done <- computeResult{err: err}
		return
	}

	if err := p.persist(ctx, s.key, c, payload); err != nil {
		p.storeFailed(ctx, storeOp(err), s.key, err)
		span.RecordError(err)
		if p.strict {
			_ = p.removeStored(ctx, s)
			p.evictLocked(s)
			done <- computeResult{err: err}
			return
		}
		// Served from memory only. A record left by an earlier run stays
		// marked as stored so clears still remove it.
		s.payload = payload
		s.setState(cache.StateReady)
		done <- computeResult{payload: payload}
		return
	}

	s.payload = payload
	s.stored = true
	s.setState(cache.StateReady)
	done <- computeResult{payload: payload}
}

func storeOp(err error) string {
	var ioErr *cache.StoreIOError
	if errors.As(err, &ioErr) && ioErr.Op != "" {
		return ioErr.Op
	}
	return "put"
}

// callCompute invokes the computation, turning errors and panics into
// *cache.ComputeError.
func callCompute(ctx context.Context, key cache.CacheKey, c cache.Computation) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload = nil
			err = &cache.ComputeError{Key: key, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	payload, err = c.Compute(ctx, key.Datasets())
	if err != nil {
		return nil, &cache.ComputeError{Key: key, Err: err}
	}
	return payload, nil
}

func (p *Provider) persist(ctx context.Context, key cache.CacheKey, c cache.Computation, payload any) error {
	data, err := c.Encode(payload)
	if err != nil {
		return cache.NewStoreIOError("encode", key, err)
	}
	if err := p.store.Put(ctx, key, data); err != nil {
		var ioErr *cache.StoreIOError
		if errors.As(err, &ioErr) {
			return err
		}
		return cache.NewStoreIOError("put", key, err)
	}
	return nil
}

// evictLocked drops the entry of s from the registry. The caller holds the
// slot lock.
func (p *Provider) evictLocked(s *slot) {
	s.dead = true
	s.payload = nil
	s.stored = false
	s.setState(cache.StateEmpty)
	p.slots.Compute(s.key.String(), func(old *slot, loaded bool) (*slot, bool) {
		if loaded && old != s {
			return old, false
		}
		return nil, true
	})
}

func (p *Provider) storeFailed(ctx context.Context, op string, key cache.CacheKey, err error) {
	p.metrics.storeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	p.logger.Warn("cache store operation failed",
		zap.String("op", op),
		zap.String("key", key.String()),
		zap.Error(err),
	)
}

// ClearCacheForDataset evicts every entry computed from at least one of the
// given datasets. Clearing absent entries is a no-op.
func (p *Provider) ClearCacheForDataset(ctx context.Context, datasets ...cache.DatasetID) error {
	if len(datasets) == 0 {
		return nil
	}
	selection := cache.NormalizeDatasets(datasets)
	return p.clear(ctx, "dataset", func(k cache.CacheKey) bool {
		return k.Intersects(selection...)
	})
}

// ClearCacheForModule evicts every entry whose dataset scope contains a
// dataset of module.
func (p *Provider) ClearCacheForModule(ctx context.Context, module cache.Module) error {
	return p.clear(ctx, "module", func(k cache.CacheKey) bool {
		return k.HasModule(module)
	})
}

// ClearAllCacheFiles evicts every entry that exists when it is called.
// Entries created by GetData calls running concurrently may survive.
func (p *Provider) ClearAllCacheFiles(ctx context.Context) error {
	return p.clear(ctx, "all", func(cache.CacheKey) bool { return true })
}

// clear snapshots the matching slots, then evicts them one lock at a time.
// The in-memory eviction always happens once a slot lock is taken; the
// returned error reports store removals that failed or a ctx that ended.
func (p *Provider) clear(ctx context.Context, scope string, match func(cache.CacheKey) bool) error {
	var targets []*slot
	p.slots.Range(func(_ string, s *slot) bool {
		if match(s.key) {
			targets = append(targets, s)
		}
		return true
	})

	var errs *multierror.Error
	evicted := 0
	for _, s := range targets {
		if err := s.acquire(ctx); err != nil {
			errs = multierror.Append(errs, err)
			break
		}
		if !s.dead {
			if err := p.removeStored(ctx, s); err != nil {
				errs = multierror.Append(errs, err)
			}
			p.evictLocked(s)
			evicted++
		}
		s.release()
	}

	p.metrics.evictions.Add(ctx, int64(evicted), metric.WithAttributes(attribute.String("scope", scope)))
	p.logger.Info("cleared cache entries", zap.String("scope", scope), zap.Int("evicted", evicted))

	return errs.ErrorOrNil()
}

// Entries returns a snapshot of the registry sorted by key. States are read
// without taking slot locks and may be stale by the time they are used.
func (p *Provider) Entries() []cache.EntryInfo {
	var out []cache.EntryInfo
	p.slots.Range(func(_ string, s *slot) bool {
		out = append(out, cache.EntryInfo{Key: s.key, State: s.getState()})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

// Len returns the number of registered entries.
func (p *Provider) Len() int {
	return p.slots.Size()
}

// Close rejects new GetData calls, waits for in-flight computations and
// closes the store. Persisted records are kept for a later restore.
func (p *Provider) Close(ctx context.Context) error {
	p.closeMu.Lock()
	alreadyClosed := p.closed.Swap(true)
	p.closeMu.Unlock()
	if alreadyClosed {
		return nil
	}

	drained := make(chan struct{})
	go func() {
		p.inFlight.Wait()
		close(drained)
	}()

	var errs *multierror.Error
	select {
	case <-drained:
	case <-ctx.Done():
		errs = multierror.Append(errs, ctx.Err())
	}

	if err := p.store.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}
