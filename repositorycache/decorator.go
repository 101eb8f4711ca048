package repositorycache

import (
	"context"
	"errors"
	"sort"

	"github.com/goliatone/go-dataset-cache/cache"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// DefaultDatasetColumn is the column matched against dataset IDs.
const DefaultDatasetColumn = "dataset_id"

// ErrNoDatasetScope is returned by List when the context carries no datasets.
var ErrNoDatasetScope = errors.New("repositorycache: no dataset scope in context")

// Source lists records. Any go-repository-bun repository.Repository[T]
// satisfies it, and so does BunSource.
type Source[T any] interface {
	List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error)
}

// CachedRepository serves dataset-scoped listings of T through a
// cache.DataProvider. All rows of the selected datasets are loaded with one
// query per cache miss and shared between callers until the datasets are
// invalidated.
type CachedRepository[T any] struct {
	source     Source[T]
	provider   cache.DataProvider
	entityType cache.EntityType

	datasetColumn string
	moduleColumn  string
	criteria      []repository.SelectCriteria
	logger        *zap.Logger
}

// Option configures a CachedRepository.
type Option func(*options)

type options struct {
	datasetColumn string
	moduleColumn  string
	criteria      []repository.SelectCriteria
	logger        *zap.Logger
}

// WithDatasetColumn sets the column holding the dataset ID.
func WithDatasetColumn(column string) Option {
	return func(o *options) {
		if column != "" {
			o.datasetColumn = column
		}
	}
}

// WithModuleColumn also matches the dataset module against column. Without
// it only dataset IDs are matched, which is enough when a table holds rows
// of a single module.
func WithModuleColumn(column string) Option {
	return func(o *options) {
		o.moduleColumn = column
	}
}

// WithCriteria appends criteria to every query, for example an ORDER BY.
func WithCriteria(criteria ...repository.SelectCriteria) Option {
	return func(o *options) {
		o.criteria = append(o.criteria, criteria...)
	}
}

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates a CachedRepository caching rows of source under entityType.
func New[T any](source Source[T], provider cache.DataProvider, entityType cache.EntityType, opts ...Option) *CachedRepository[T] {
	o := options{
		datasetColumn: DefaultDatasetColumn,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &CachedRepository[T]{
		source:        source,
		provider:      provider,
		entityType:    entityType,
		datasetColumn: o.datasetColumn,
		moduleColumn:  o.moduleColumn,
		criteria:      o.criteria,
		logger:        o.logger,
	}
}

// EntityType returns the entity tag entries are cached under.
func (c *CachedRepository[T]) EntityType() cache.EntityType {
	return c.entityType
}

// ListByDatasets returns every record of the given datasets. The slice is
// shared with other callers and must not be modified.
func (c *CachedRepository[T]) ListByDatasets(ctx context.Context, datasets ...cache.DatasetID) ([]T, error) {
	return cache.GetData(ctx, c.provider, c.entityType, datasets, c.load)
}

// List returns the records of the datasets attached to ctx with WithDatasets.
func (c *CachedRepository[T]) List(ctx context.Context) ([]T, error) {
	datasets := DatasetsFromContext(ctx)
	if len(datasets) == 0 {
		return nil, ErrNoDatasetScope
	}
	return c.ListByDatasets(ctx, datasets...)
}

// InvalidateDatasets evicts every cached listing that includes one of the
// datasets, for this and every other entity type.
func (c *CachedRepository[T]) InvalidateDatasets(ctx context.Context, datasets ...cache.DatasetID) error {
	return c.provider.ClearCacheForDataset(ctx, datasets...)
}

// InvalidateModule evicts every cached listing that includes a dataset of
// module.
func (c *CachedRepository[T]) InvalidateModule(ctx context.Context, module cache.Module) error {
	return c.provider.ClearCacheForModule(ctx, module)
}

func (c *CachedRepository[T]) load(ctx context.Context, datasets []cache.DatasetID) ([]T, error) {
	criteria := make([]repository.SelectCriteria, 0, len(c.criteria)+1)
	criteria = append(criteria, c.datasetCriteria(datasets))
	criteria = append(criteria, c.criteria...)

	records, total, err := c.source.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("loaded dataset records",
		zap.String("entity_type", string(c.entityType)),
		zap.Int("datasets", len(datasets)),
		zap.Int("total", total),
	)
	return records, nil
}

func (c *CachedRepository[T]) datasetCriteria(datasets []cache.DatasetID) repository.SelectCriteria {
	if c.moduleColumn == "" {
		ids := make([]int64, 0, len(datasets))
		for _, d := range datasets {
			if len(ids) == 0 || ids[len(ids)-1] != d.ID {
				ids = append(ids, d.ID)
			}
		}
		return func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("? IN (?)", bun.Ident(c.datasetColumn), bun.In(ids))
		}
	}

	byModule := map[cache.Module][]int64{}
	for _, d := range datasets {
		byModule[d.Module] = append(byModule[d.Module], d.ID)
	}
	modules := make([]cache.Module, 0, len(byModule))
	for m := range byModule {
		modules = append(modules, m)
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i] < modules[j] })

	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, m := range modules {
				q = q.WhereOr("? = ? AND ? IN (?)",
					bun.Ident(c.moduleColumn), string(m),
					bun.Ident(c.datasetColumn), bun.In(byModule[m]),
				)
			}
			return q
		})
	}
}
