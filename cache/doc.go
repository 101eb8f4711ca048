// Package cache defines the dataset computation cache contract: keys, the
// provider and store interfaces, the error taxonomy and configuration.
//
// # Overview
//
// Loading the raw event collections of a dataset (labs, adverse events,
// vitals, ...) is expensive. A DataProvider memoizes the result of a compute
// function keyed by (entity type, dataset selection):
//
//   - At most one computation per key runs at any time (single-flight)
//   - Callers for unrelated keys never block each other
//   - Entries are invalidated per dataset, per module or globally
//
// There is no TTL or LRU policy: an entry lives until it is cleared.
//
// # Basic Usage
//
//	labs, err := cache.GetData(ctx, provider, "Lab",
//		[]cache.DatasetID{cache.Dataset(cache.ModuleAcuity, 42)},
//		func(ctx context.Context, datasets []cache.DatasetID) ([]Lab, error) {
//			return labRepository.FindByDatasets(ctx, datasets)
//		})
//
//	// After new data was loaded for dataset 42:
//	err = provider.ClearCacheForDataset(ctx, cache.Dataset(cache.ModuleAcuity, 42))
//
// # Keys
//
// NewCacheKey sorts and deduplicates the dataset selection, so {A,B} and
// {B,A} hit the same entry. An empty entity type or selection, or an entity
// type or module containing '|', ',' or ':', is rejected with ErrInvalidKey
// before any locking happens.
//
// Each DatasetID carries the Module it belongs to. ClearCacheForModule
// evicts every entry whose scope contains at least one dataset of that
// module.
//
// # Invalidation Racing Computation
//
// A clear that targets a key with a computation in flight waits for it to
// finish and then evicts the result. Callers that arrive after the clear
// returns always trigger a fresh computation.
//
// ClearAllCacheFiles clears the entries that existed when it was called;
// entries created concurrently by new GetData calls may survive it.
//
// # Errors
//
//   - ErrInvalidKey: empty entity type or dataset selection
//   - *ComputeError (errors.Is ErrCompute): the compute function failed or
//     panicked; only the caller that triggered it sees the error and nothing
//     is cached, so the next caller retries
//   - *StoreIOError (errors.Is ErrStoreIO): the persistence layer failed; a
//     read failure is a cache miss, a write failure keeps the entry in memory
//     only (with Config.StrictStore it is returned to the caller instead and
//     nothing is cached)
//
// # See Also
//
// The provider and store implementations live in internal/cacheinfra and are
// assembled by pkg/di. The repositorycache package decorates repositories
// with dataset-scoped caching.
package cache
