package di

import (
	"context"

	"github.com/goliatone/go-dataset-cache/cache"
	"github.com/goliatone/go-dataset-cache/internal/cacheinfra"
	"github.com/goliatone/go-dataset-cache/repositorycache"
)

// Container wires the cache components together. It owns a single store
// and provider built from a cache.Config and hands out cached repositories
// that share them.
type Container struct {
	provider      *cacheinfra.Provider
	store         cache.Store
	keySerializer cache.KeySerializer
	config        cache.Config
}

// NewContainer validates config, builds the configured store and the
// provider on top of it. RestoreOnStart and StrictStore from config are
// applied after opts.
func NewContainer(ctx context.Context, config cache.Config, opts ...cacheinfra.Option) (*Container, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	keySerializer := cache.NewDefaultKeySerializer()
	opts = append([]cacheinfra.Option{cacheinfra.WithKeySerializer(keySerializer)}, opts...)

	store, err := cacheinfra.NewStore(config, opts...)
	if err != nil {
		return nil, err
	}

	opts = append(opts,
		cacheinfra.WithRestore(config.RestoreOnStart),
		cacheinfra.WithStrictStore(config.StrictStore),
	)
	provider, err := cacheinfra.NewProvider(ctx, store, opts...)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &Container{
		provider:      provider,
		store:         store,
		keySerializer: keySerializer,
		config:        config,
	}, nil
}

// NewContainerWithDefaults creates a container using cache.DefaultConfig.
func NewContainerWithDefaults(ctx context.Context) (*Container, error) {
	return NewContainer(ctx, cache.DefaultConfig())
}

// NewContainerFromFile loads the configuration with cache.LoadConfig, so
// environment overrides apply, and creates a container from it.
func NewContainerFromFile(ctx context.Context, path string, opts ...cacheinfra.Option) (*Container, error) {
	config, err := cache.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return NewContainer(ctx, config, opts...)
}

// Provider returns the shared data provider.
func (c *Container) Provider() cache.DataProvider {
	return c.provider
}

// Entries returns a diagnostic snapshot of the provider registry.
func (c *Container) Entries() []cache.EntryInfo {
	return c.provider.Entries()
}

// Store returns the store backing the provider.
func (c *Container) Store() cache.Store {
	return c.store
}

// KeySerializer returns the serializer used to name persisted records.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() cache.Config {
	return c.config
}

// Close waits for in-flight computations and closes the store.
func (c *Container) Close(ctx context.Context) error {
	return c.provider.Close(ctx)
}

// NewCachedRepository creates a cached repository sharing the container's
// provider.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: NewCachedRepository[Lab](container, labRepository, "Lab")
func NewCachedRepository[T any](container *Container, source repositorycache.Source[T], entityType cache.EntityType, opts ...repositorycache.Option) *repositorycache.CachedRepository[T] {
	return repositorycache.New(source, container.provider, entityType, opts...)
}
