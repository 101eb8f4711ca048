package testsupport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/goliatone/go-dataset-cache/cache"
)

func TestLoadFixture(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")
	testContent := []byte("test fixture content")

	if err := os.WriteFile(testFile, testContent, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	result := LoadFixture(t, testFile)
	if string(result) != string(testContent) {
		t.Errorf("expected %q, got %q", testContent, result)
	}
}

func TestLoadFixtureYAML_Selections(t *testing.T) {
	var selections []Selection
	LoadFixtureYAML(t, FixturePath("selections.yaml"), &selections)

	if len(selections) != 3 {
		t.Fatalf("expected 3 selections, got %d", len(selections))
	}

	first := selections[0].Key(t)
	if first.String() != "Subject|acuity:42" {
		t.Errorf("unexpected key %q", first)
	}

	// duplicates and order in the fixture collapse on normalization
	second := selections[1].Key(t)
	if second.String() != "Subject|acuity:3,detect:7" {
		t.Errorf("unexpected key %q", second)
	}

	if selections[2].Entity != "Lab" {
		t.Errorf("expected Lab entity, got %q", selections[2].Entity)
	}
}

func TestLoadFixtureJSON_Selection(t *testing.T) {
	var sel Selection
	LoadFixtureJSON(t, FixturePath("selection.json"), &sel)

	key := sel.Key(t)
	if key.String() != "Lab|acuity:1,detect:9" {
		t.Errorf("unexpected key %q", key)
	}
}

func TestWriteFixture(t *testing.T) {
	dir := t.TempDir()
	path := WriteFixture(t, dir, filepath.Join("nested", "config.yaml"), []byte("store: memory\n"))

	if path != filepath.Join(dir, "nested", "config.yaml") {
		t.Errorf("unexpected path %s", path)
	}
	if got := string(LoadFixture(t, path)); got != "store: memory\n" {
		t.Errorf("unexpected content %q", got)
	}
}

func TestFixturePath(t *testing.T) {
	if got := FixturePath("data.json"); got != filepath.Join("testdata", "data.json") {
		t.Errorf("expected testdata/data.json, got %s", got)
	}
}

func TestCounter(t *testing.T) {
	c := Returning([]string{"a", "b"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := c.Compute(context.Background(), []cache.DatasetID{cache.Dataset(cache.ModuleAcuity, 1)})
			if err != nil || len(out) != 2 {
				t.Errorf("unexpected result %v, %v", out, err)
			}
		}()
	}
	wg.Wait()

	if c.Calls() != 10 {
		t.Errorf("expected 10 calls, got %d", c.Calls())
	}
	if len(c.Seen()) != 10 {
		t.Errorf("expected 10 recorded selections, got %d", len(c.Seen()))
	}
}

func TestCounter_NilFunction(t *testing.T) {
	c := NewCounter[int](nil)
	v, err := c.Compute(context.Background(), nil)
	if err != nil || v != 0 {
		t.Errorf("expected zero value, got %d, %v", v, err)
	}
}

type mapStore struct {
	cache.Store
	data map[string][]byte
}

func (m *mapStore) Put(_ context.Context, key cache.CacheKey, payload []byte) error {
	m.data[key.String()] = payload
	return nil
}

func (m *mapStore) Get(_ context.Context, key cache.CacheKey) ([]byte, bool, error) {
	v, ok := m.data[key.String()]
	return v, ok, nil
}

func (m *mapStore) Remove(_ context.Context, key cache.CacheKey) error {
	delete(m.data, key.String())
	return nil
}

func TestFaultyStore(t *testing.T) {
	ctx := context.Background()
	key, err := cache.NewCacheKey("Subject", cache.Dataset(cache.ModuleAcuity, 42))
	if err != nil {
		t.Fatal(err)
	}

	s := NewFaultyStore(&mapStore{data: map[string][]byte{}})

	if err := s.Put(ctx, key, []byte("x")); err != nil {
		t.Fatalf("unexpected put error: %v", err)
	}

	s.FailGet.Store(true)
	if _, _, err := s.Get(ctx, key); !errors.Is(err, ErrInjected) {
		t.Errorf("expected injected get failure, got %v", err)
	}

	s.FailGet.Store(false)
	data, found, err := s.Get(ctx, key)
	if err != nil || !found || string(data) != "x" {
		t.Errorf("unexpected get result %q %v %v", data, found, err)
	}

	s.FailPut.Store(true)
	if err := s.Put(ctx, key, []byte("y")); !errors.Is(err, ErrInjected) {
		t.Errorf("expected injected put failure, got %v", err)
	}

	s.FailRemove.Store(true)
	if err := s.Remove(ctx, key); !errors.Is(err, ErrInjected) {
		t.Errorf("expected injected remove failure, got %v", err)
	}

	if s.Puts() != 2 || s.Gets() != 2 || s.Removes() != 1 {
		t.Errorf("unexpected call counts puts=%d gets=%d removes=%d", s.Puts(), s.Gets(), s.Removes())
	}
}
