package cache

import (
	"context"
	"errors"
	"testing"
)

func TestDataProvider_Contract(t *testing.T) {
	var _ DataProvider = (*mockProvider)(nil)
}

func TestKeySerializer_Contract(t *testing.T) {
	var _ KeySerializer = NewDefaultKeySerializer()
}

// mockProvider runs the computation on every call and returns result when
// it is set.
type mockProvider struct {
	result   any
	err      error
	lastKey  CacheKey
	datasets []DatasetID
}

func (m *mockProvider) GetData(ctx context.Context, entityType EntityType, datasets []DatasetID, c Computation) (any, error) {
	key, err := NewCacheKey(entityType, datasets...)
	if err != nil {
		return nil, err
	}
	m.lastKey = key
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	m.datasets = key.Datasets()
	return c.Compute(ctx, m.datasets)
}

func (m *mockProvider) ClearCacheForDataset(ctx context.Context, datasets ...DatasetID) error {
	return nil
}

func (m *mockProvider) ClearCacheForModule(ctx context.Context, module Module) error {
	return nil
}

func (m *mockProvider) ClearAllCacheFiles(ctx context.Context) error {
	return nil
}

func TestGetData_NilInterfaceResult(t *testing.T) {
	type SomeInterface interface {
		DoSomething() string
	}

	mock := &mockProvider{}
	result, err := GetData[SomeInterface](context.Background(), mock, "Subject", []DatasetID{Dataset(ModuleAcuity, 1)},
		func(ctx context.Context, datasets []DatasetID) (SomeInterface, error) {
			return nil, nil
		})

	if err != nil {
		t.Errorf("expected no error but got: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result but got: %v", result)
	}
}

func TestGetData_TypeMismatch(t *testing.T) {
	mock := &mockProvider{result: "wrong-type"}

	result, err := GetData[int](context.Background(), mock, "Subject", []DatasetID{Dataset(ModuleAcuity, 1)},
		func(ctx context.Context, datasets []DatasetID) (int, error) {
			return 42, nil
		})

	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch but got: %v", err)
	}
	if result != 0 {
		t.Errorf("expected zero value (0) but got: %v", result)
	}
}

func TestGetData_ProviderError(t *testing.T) {
	boom := errors.New("boom")
	mock := &mockProvider{err: boom}

	_, err := GetData(context.Background(), mock, "Subject", []DatasetID{Dataset(ModuleAcuity, 1)},
		func(ctx context.Context, datasets []DatasetID) (string, error) {
			return "unused", nil
		})

	if !errors.Is(err, boom) {
		t.Errorf("expected provider error but got: %v", err)
	}
}

func TestGetData_NilCompute(t *testing.T) {
	_, err := GetData[string](context.Background(), &mockProvider{}, "Subject", []DatasetID{Dataset(ModuleAcuity, 1)}, nil)
	if err == nil {
		t.Error("expected error for nil compute function")
	}
}

func TestGetData_PassesNormalizedSelection(t *testing.T) {
	mock := &mockProvider{}
	input := []DatasetID{Dataset(ModuleDetect, 9), Dataset(ModuleAcuity, 2), Dataset(ModuleDetect, 9)}

	result, err := GetData(context.Background(), mock, "Lab", input,
		func(ctx context.Context, datasets []DatasetID) (int, error) {
			return len(datasets), nil
		})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 2 {
		t.Errorf("expected 2 datasets after normalization, got %d", result)
	}
	if mock.lastKey.String() != "Lab|acuity:2,detect:9" {
		t.Errorf("unexpected key %s", mock.lastKey)
	}
}

func TestTypedComputation_EncodeDecode(t *testing.T) {
	type lab struct {
		Subject string  `msgpack:"subject"`
		Value   float64 `msgpack:"value"`
	}

	c := typedComputation[[]lab]{}
	in := []lab{{Subject: "S-001", Value: 4.2}, {Subject: "S-002", Value: 1.5}}

	data, err := c.Encode(in)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	out, err := c.Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	got, ok := out.([]lab)
	if !ok {
		t.Fatalf("expected []lab, got %T", out)
	}
	if len(got) != 2 || got[1] != in[1] {
		t.Errorf("unexpected decoded payload %v", got)
	}

	if _, err := c.Decode([]byte{0xc1}); err == nil {
		t.Error("expected decode error for invalid data")
	}
}

func TestEntryState_String(t *testing.T) {
	tests := map[EntryState]string{
		StateEmpty:     "empty",
		StateComputing: "computing",
		StateReady:     "ready",
		EntryState(9):  "state(9)",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}

func TestErrors(t *testing.T) {
	key, err := NewCacheKey("Subject", Dataset(ModuleAcuity, 42))
	if err != nil {
		t.Fatal(err)
	}
	cause := errors.New("disk full")

	var computeErr error = &ComputeError{Key: key, Err: cause}
	if !errors.Is(computeErr, ErrCompute) || !errors.Is(computeErr, cause) {
		t.Errorf("compute error should match ErrCompute and its cause: %v", computeErr)
	}
	if errors.Is(computeErr, ErrStoreIO) {
		t.Error("compute error should not match ErrStoreIO")
	}

	ioErr := NewStoreIOError("put", key, cause)
	if !errors.Is(ioErr, ErrStoreIO) || !errors.Is(ioErr, cause) {
		t.Errorf("store error should match ErrStoreIO and its cause: %v", ioErr)
	}
	if ioErr.Error() != "store put Subject|acuity:42: disk full" {
		t.Errorf("unexpected message %q", ioErr.Error())
	}

	if NewStoreIOError("put", key, nil) != nil {
		t.Error("expected nil for a nil cause")
	}

	keyless := NewStoreIOError("keys", CacheKey{}, cause)
	if keyless.Error() != "store keys: disk full" {
		t.Errorf("unexpected message %q", keyless.Error())
	}
}
