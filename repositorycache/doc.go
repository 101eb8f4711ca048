// Package repositorycache caches dataset-scoped listings loaded through
// go-repository-bun repositories or plain bun queries.
//
// # Overview
//
// Most entity tables in a dataset store (subjects, labs, adverse events,
// ...) carry a dataset column. CachedRepository loads every row of a dataset
// selection with a single query and memoizes the result in a
// cache.DataProvider, keyed by the repository entity type and the
// normalized selection. Concurrent callers for the same selection share one
// query.
//
// # Basic Usage
//
//	labs := repositorycache.New[Lab](labRepository, provider, "Lab",
//		repositorycache.WithDatasetColumn("dataset_id"),
//		repositorycache.WithModuleColumn("module"),
//	)
//
//	rows, err := labs.ListByDatasets(ctx,
//		cache.Dataset(cache.ModuleAcuity, 42),
//		cache.Dataset(cache.ModuleDetect, 7),
//	)
//
// labRepository is any go-repository-bun repository.Repository[Lab]. Tables
// without a repository can use NewBunSource.
//
// # Dataset Scope In Context
//
// Request handlers usually resolve the active datasets once. Attach them to
// the context and call List:
//
//	ctx = repositorycache.WithDatasets(ctx, cache.Dataset(cache.ModuleAcuity, 42))
//	rows, err := labs.List(ctx)
//
// List fails with ErrNoDatasetScope when no datasets are attached.
//
// # Invalidation
//
// Entries live until the datasets they were loaded from are invalidated:
//
//	err := labs.InvalidateDatasets(ctx, cache.Dataset(cache.ModuleAcuity, 42))
//	err = labs.InvalidateModule(ctx, cache.ModuleDetect)
//
// Invalidation goes through the shared provider, so it evicts the listings of
// every entity type built from those datasets, not only this repository's.
//
// # Error Handling
//
// Query errors are returned wrapped in *cache.ComputeError and nothing is
// cached; the next call queries again.
//
// # See Also
//
// For keys, providers and configuration see the cache package. For wiring
// see pkg/di.
package repositorycache
