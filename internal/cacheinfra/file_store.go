package cacheinfra

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goliatone/go-dataset-cache/cache"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

const (
	recordFileExt = ".cache"
	tempFileExt   = ".tmp"
)

var _ cache.Store = (*FileStore)(nil)

// FileStore keeps one file per key in a directory. Writes go to a temp file
// in the same directory that is renamed into place, so a reader sees either
// the previous record or the complete new one.
//
// The directory is scanned once, when the store is opened, to rebuild the
// index of known keys. After that the index is the only source for Keys and
// RemoveAll.
type FileStore struct {
	dir        string
	serializer cache.KeySerializer
	index      *xsync.MapOf[string, cache.CacheKey]
	logger     *zap.Logger
}

// NewFileStore opens (creating if needed) a file store rooted at dir.
// Leftover temp files and unreadable records are deleted.
func NewFileStore(dir string, serializer cache.KeySerializer, logger *zap.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("cacheinfra: empty cache directory")
	}
	if serializer == nil {
		serializer = cache.NewDefaultKeySerializer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, cache.NewStoreIOError("open", cache.CacheKey{}, err)
	}

	s := &FileStore{
		dir:        dir,
		serializer: serializer,
		index:      xsync.NewMapOf[string, cache.CacheKey](),
		logger:     logger,
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) loadIndex() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return cache.NewStoreIOError("open", cache.CacheKey{}, err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		fileName := entry.Name()
		path := filepath.Join(s.dir, fileName)

		switch {
		case strings.HasSuffix(fileName, tempFileExt):
			s.discard(path, "interrupted write")
		case strings.HasSuffix(fileName, recordFileExt):
			key, err := s.readKey(path)
			if err != nil {
				s.discard(path, err.Error())
				continue
			}
			name := strings.TrimSuffix(fileName, recordFileExt)
			if s.serializer.SerializeKey(key) != name {
				s.discard(path, "name does not match key")
				continue
			}
			s.index.Store(name, key)
		}
	}
	return nil
}

func (s *FileStore) readKey(path string) (cache.CacheKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return cache.CacheKey{}, err
	}
	defer f.Close()
	return readRecordKey(bufio.NewReader(f))
}

func (s *FileStore) discard(path, reason string) {
	s.logger.Warn("removing unusable cache file", zap.String("path", path), zap.String("reason", reason))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove cache file", zap.String("path", path), zap.Error(err))
	}
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+recordFileExt)
}

// Dir returns the directory the store writes to.
func (s *FileStore) Dir() string {
	return s.dir
}

// Put writes the record for key atomically.
func (s *FileStore) Put(ctx context.Context, key cache.CacheKey, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return cache.NewStoreIOError("put", key, err)
	}

	name := s.serializer.SerializeKey(key)
	tmp := filepath.Join(s.dir, "."+name+"."+uuid.NewString()+tempFileExt)

	if err := s.writeTemp(tmp, key, payload); err != nil {
		_ = os.Remove(tmp)
		return cache.NewStoreIOError("put", key, err)
	}
	if err := os.Rename(tmp, s.path(name)); err != nil {
		_ = os.Remove(tmp)
		return cache.NewStoreIOError("put", key, err)
	}

	s.index.Store(name, key)
	return nil
}

func (s *FileStore) writeTemp(path string, key cache.CacheKey, payload []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	if err := writeRecord(w, key, payload); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Get reads the record for key. A record written for a different key that
// hashes to the same name is reported as absent.
func (s *FileStore) Get(ctx context.Context, key cache.CacheKey) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, cache.NewStoreIOError("get", key, err)
	}

	f, err := os.Open(s.path(s.serializer.SerializeKey(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, cache.NewStoreIOError("get", key, err)
	}
	defer f.Close()

	stored, payload, err := readRecord(bufio.NewReader(f))
	if err != nil {
		return nil, false, cache.NewStoreIOError("get", key, err)
	}
	if !stored.Equal(key) {
		s.logger.Warn("cache file holds another key",
			zap.String("key", key.String()),
			zap.String("stored", stored.String()),
		)
		return nil, false, nil
	}
	return payload, true, nil
}

// Remove deletes the record for key. Removing an absent record is a no-op.
func (s *FileStore) Remove(ctx context.Context, key cache.CacheKey) error {
	name := s.serializer.SerializeKey(key)
	if indexed, ok := s.index.Load(name); ok && !indexed.Equal(key) {
		return nil
	}
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return cache.NewStoreIOError("remove", key, err)
	}
	s.index.Delete(name)
	return nil
}

// RemoveAll deletes every indexed record whose key matches.
func (s *FileStore) RemoveAll(ctx context.Context, match func(cache.CacheKey) bool) error {
	var errs *multierror.Error
	for _, key := range s.matching(match) {
		if err := s.Remove(ctx, key); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// Keys returns the indexed keys sorted by identity.
func (s *FileStore) Keys(ctx context.Context) ([]cache.CacheKey, error) {
	return s.matching(func(cache.CacheKey) bool { return true }), nil
}

func (s *FileStore) matching(match func(cache.CacheKey) bool) []cache.CacheKey {
	var keys []cache.CacheKey
	s.index.Range(func(_ string, key cache.CacheKey) bool {
		if match(key) {
			keys = append(keys, key)
		}
		return true
	})
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Close is a no-op; files stay on disk.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) String() string {
	return fmt.Sprintf("file store %s", s.dir)
}
