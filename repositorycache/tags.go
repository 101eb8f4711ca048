package repositorycache

import (
	"context"

	"github.com/goliatone/go-dataset-cache/cache"
)

type datasetScopeContextKey struct{}

// WithDatasets attaches datasets to the context, merged with any already
// attached, for CachedRepository.List.
func WithDatasets(ctx context.Context, datasets ...cache.DatasetID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(datasets) == 0 {
		return ctx
	}

	combined := append(DatasetsFromContext(ctx), datasets...)
	return context.WithValue(ctx, datasetScopeContextKey{}, cache.NormalizeDatasets(combined))
}

// DatasetsFromContext returns a copy of the datasets attached to ctx.
func DatasetsFromContext(ctx context.Context) []cache.DatasetID {
	if ctx == nil {
		return nil
	}
	if datasets, ok := ctx.Value(datasetScopeContextKey{}).([]cache.DatasetID); ok {
		return append([]cache.DatasetID(nil), datasets...)
	}
	return nil
}
