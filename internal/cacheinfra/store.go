package cacheinfra

import (
	"fmt"

	"github.com/goliatone/go-dataset-cache/cache"
)

// NewStore builds the store selected by cfg. Only the logger and key
// serializer options are used.
func NewStore(cfg cache.Config, opts ...Option) (cache.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", cache.ErrInvalidValue, err)
	}

	o, err := getOpts(opts)
	if err != nil {
		return nil, err
	}

	switch cfg.Store {
	case cache.StoreFile:
		store, err := NewFileStore(cfg.Dir, o.keySerializer, o.logger.Named("filestore"))
		if err != nil {
			return nil, err
		}
		return store, nil
	case cache.StoreMemory:
		store, err := NewMemoryStore(cfg.Memory)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unknown store %q", cache.ErrInvalidValue, cfg.Store)
	}
}
