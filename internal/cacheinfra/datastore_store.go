package cacheinfra

import (
	"bytes"
	"context"
	"errors"
	"sort"

	"github.com/goliatone/go-dataset-cache/cache"
	"github.com/hashicorp/go-multierror"
	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	"go.uber.org/zap"
)

// DatastoreKeyPrefix namespaces the records written by DatastoreStore.
const DatastoreKeyPrefix = "/dataset-cache"

var _ cache.Store = (*DatastoreStore)(nil)

// DatastoreStore persists records in a go-datastore Datastore. Each record
// uses the same envelope as FileStore, under DatastoreKeyPrefix/<name>.
//
// The datastore is owned by the caller and is not closed by Close.
type DatastoreStore struct {
	ds         datastore.Datastore
	serializer cache.KeySerializer
	logger     *zap.Logger
}

func NewDatastoreStore(ds datastore.Datastore, serializer cache.KeySerializer, logger *zap.Logger) (*DatastoreStore, error) {
	if ds == nil {
		return nil, errors.New("cacheinfra: nil datastore")
	}
	if serializer == nil {
		serializer = cache.NewDefaultKeySerializer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatastoreStore{ds: ds, serializer: serializer, logger: logger}, nil
}

func (s *DatastoreStore) dsKey(key cache.CacheKey) datastore.Key {
	return datastore.NewKey(DatastoreKeyPrefix).ChildString(s.serializer.SerializeKey(key))
}

func (s *DatastoreStore) Put(ctx context.Context, key cache.CacheKey, payload []byte) error {
	data, err := marshalRecord(key, payload)
	if err != nil {
		return cache.NewStoreIOError("put", key, err)
	}
	dk := s.dsKey(key)
	if err := s.ds.Put(ctx, dk, data); err != nil {
		return cache.NewStoreIOError("put", key, err)
	}
	return cache.NewStoreIOError("put", key, s.ds.Sync(ctx, dk))
}

func (s *DatastoreStore) Get(ctx context.Context, key cache.CacheKey) ([]byte, bool, error) {
	data, err := s.ds.Get(ctx, s.dsKey(key))
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, cache.NewStoreIOError("get", key, err)
	}

	stored, payload, err := readRecord(bytes.NewReader(data))
	if err != nil {
		return nil, false, cache.NewStoreIOError("get", key, err)
	}
	if !stored.Equal(key) {
		s.logger.Warn("datastore record holds another key",
			zap.String("key", key.String()),
			zap.String("stored", stored.String()),
		)
		return nil, false, nil
	}
	return payload, true, nil
}

func (s *DatastoreStore) Remove(ctx context.Context, key cache.CacheKey) error {
	dk := s.dsKey(key)
	data, err := s.ds.Get(ctx, dk)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return nil
		}
		return cache.NewStoreIOError("remove", key, err)
	}
	if stored, err := readRecordKey(bytes.NewReader(data)); err == nil && !stored.Equal(key) {
		return nil
	}
	if err := s.ds.Delete(ctx, dk); err != nil {
		return cache.NewStoreIOError("remove", key, err)
	}
	return nil
}

func (s *DatastoreStore) RemoveAll(ctx context.Context, match func(cache.CacheKey) bool) error {
	entries, err := s.entries(ctx)
	if err != nil {
		return err
	}

	var errs *multierror.Error
	for _, e := range entries {
		if e.key.IsZero() || match(e.key) {
			if err := s.ds.Delete(ctx, datastore.NewKey(e.dsKey)); err != nil {
				errs = multierror.Append(errs, cache.NewStoreIOError("remove", e.key, err))
			}
		}
	}
	return errs.ErrorOrNil()
}

// Keys lists the keys of all readable records. Unreadable records are
// skipped; RemoveAll deletes them.
func (s *DatastoreStore) Keys(ctx context.Context) ([]cache.CacheKey, error) {
	entries, err := s.entries(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]cache.CacheKey, 0, len(entries))
	for _, e := range entries {
		if !e.key.IsZero() {
			keys = append(keys, e.key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

type datastoreEntry struct {
	dsKey string
	key   cache.CacheKey
}

func (s *DatastoreStore) entries(ctx context.Context) ([]datastoreEntry, error) {
	results, err := s.ds.Query(ctx, query.Query{Prefix: DatastoreKeyPrefix})
	if err != nil {
		return nil, cache.NewStoreIOError("keys", cache.CacheKey{}, err)
	}
	all, err := results.Rest()
	if err != nil {
		return nil, cache.NewStoreIOError("keys", cache.CacheKey{}, err)
	}

	out := make([]datastoreEntry, 0, len(all))
	for _, e := range all {
		key, err := readRecordKey(bytes.NewReader(e.Value))
		if err != nil {
			s.logger.Warn("unreadable datastore record", zap.String("ds_key", e.Key), zap.Error(err))
		}
		out = append(out, datastoreEntry{dsKey: e.Key, key: key})
	}
	return out, nil
}

// Close does not close the wrapped datastore.
func (s *DatastoreStore) Close() error {
	return nil
}
