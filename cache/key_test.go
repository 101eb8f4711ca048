package cache

import (
	"errors"
	"testing"
)

func TestNewCacheKey(t *testing.T) {
	a1 := Dataset(ModuleAcuity, 1)
	a2 := Dataset(ModuleAcuity, 2)
	d1 := Dataset(ModuleDetect, 1)

	tests := []struct {
		name     string
		entity   EntityType
		datasets []DatasetID
		want     string
		wantErr  error
	}{
		{name: "single dataset", entity: "Subject", datasets: []DatasetID{a1}, want: "Subject|acuity:1"},
		{name: "sorted by id", entity: "Lab", datasets: []DatasetID{a2, a1}, want: "Lab|acuity:1,acuity:2"},
		{name: "same id ordered by module", entity: "Lab", datasets: []DatasetID{d1, a1}, want: "Lab|acuity:1,detect:1"},
		{name: "duplicates removed", entity: "Lab", datasets: []DatasetID{a1, a1, a2, a1}, want: "Lab|acuity:1,acuity:2"},
		{name: "empty entity", entity: "", datasets: []DatasetID{a1}, wantErr: ErrInvalidKey},
		{name: "empty selection", entity: "Lab", datasets: nil, wantErr: ErrInvalidKey},
		{name: "separator in module", entity: "Lab", datasets: []DatasetID{Dataset("m:1,m", 2)}, wantErr: ErrInvalidKey},
		{name: "pipe in module", entity: "Lab", datasets: []DatasetID{a1, Dataset("a|b", 3)}, wantErr: ErrInvalidKey},
		{name: "separator in entity", entity: "Lab|acuity:1", datasets: []DatasetID{a2}, wantErr: ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := NewCacheKey(tt.entity, tt.datasets...)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if !key.IsZero() {
					t.Errorf("expected zero key on error, got %s", key)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if key.String() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, key.String())
			}
			if key.EntityType() != tt.entity {
				t.Errorf("expected entity %q, got %q", tt.entity, key.EntityType())
			}
		})
	}
}

func TestCacheKey_NormalizationLaw(t *testing.T) {
	a := Dataset(ModuleAcuity, 5)
	b := Dataset(ModuleDetect, 3)
	c := Dataset(ModuleAcuity, 11)

	permutations := [][]DatasetID{
		{a, b, c},
		{c, b, a},
		{b, a, c, a},
		{c, c, a, b, b},
	}

	first, err := NewCacheKey("Subject", permutations[0]...)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range permutations[1:] {
		k, err := NewCacheKey("Subject", p...)
		if err != nil {
			t.Fatal(err)
		}
		if !k.Equal(first) {
			t.Errorf("expected %v to normalize to %s, got %s", p, first, k)
		}
	}

	other, _ := NewCacheKey("Lab", permutations[0]...)
	if other.Equal(first) {
		t.Error("keys with different entity types must differ")
	}
}

func TestCacheKey_Immutable(t *testing.T) {
	input := []DatasetID{Dataset(ModuleAcuity, 2), Dataset(ModuleAcuity, 1)}
	key, err := NewCacheKey("Subject", input...)
	if err != nil {
		t.Fatal(err)
	}

	input[0] = Dataset(ModuleDetect, 99)
	got := key.Datasets()
	got[0] = Dataset(ModuleDetect, 100)

	if key.String() != "Subject|acuity:1,acuity:2" {
		t.Errorf("key changed after mutating inputs: %s", key)
	}
	if key.Datasets()[0] != Dataset(ModuleAcuity, 1) {
		t.Errorf("Datasets must return a copy, got %v", key.Datasets())
	}
}

func TestCacheKey_Intersects(t *testing.T) {
	key, err := NewCacheKey("Lab", Dataset(ModuleAcuity, 1), Dataset(ModuleAcuity, 3), Dataset(ModuleDetect, 3))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		datasets []DatasetID
		want     bool
	}{
		{"member", []DatasetID{Dataset(ModuleAcuity, 3)}, true},
		{"one of many", []DatasetID{Dataset(ModuleAcuity, 7), Dataset(ModuleDetect, 3)}, true},
		{"same id other module", []DatasetID{Dataset(ModuleDetect, 1)}, false},
		{"disjoint", []DatasetID{Dataset(ModuleAcuity, 2)}, false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := key.Intersects(tt.datasets...); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCacheKey_HasModule(t *testing.T) {
	key, err := NewCacheKey("Lab", Dataset(ModuleAcuity, 1))
	if err != nil {
		t.Fatal(err)
	}
	if !key.HasModule(ModuleAcuity) {
		t.Error("expected acuity module")
	}
	if key.HasModule(ModuleDetect) {
		t.Error("did not expect detect module")
	}
}

func TestDatasetID_Less(t *testing.T) {
	if !Dataset(ModuleDetect, 1).Less(Dataset(ModuleAcuity, 2)) {
		t.Error("lower id sorts first regardless of module")
	}
	if !Dataset(ModuleAcuity, 4).Less(Dataset(ModuleDetect, 4)) {
		t.Error("equal ids sort by module")
	}
	if Dataset(ModuleAcuity, 4).Less(Dataset(ModuleAcuity, 4)) {
		t.Error("an id is not less than itself")
	}
}

func TestNormalizeDatasets_DoesNotMutateInput(t *testing.T) {
	input := []DatasetID{Dataset(ModuleAcuity, 3), Dataset(ModuleAcuity, 1), Dataset(ModuleAcuity, 3)}
	out := NormalizeDatasets(input)

	if len(out) != 2 || out[0].ID != 1 || out[1].ID != 3 {
		t.Errorf("unexpected normalization %v", out)
	}
	if input[0].ID != 3 || input[1].ID != 1 || len(input) != 3 {
		t.Errorf("input was mutated: %v", input)
	}
}

func TestNewCacheKey_DistinctSelectionsDistinctIdentity(t *testing.T) {
	// {m:1, m:2} would print like {"m:1,m":2} if modules were not restricted.
	first, err := NewCacheKey("Lab", Dataset("m", 1), Dataset("m", 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.String() != "Lab|m:1,m:2" {
		t.Fatalf("unexpected identity %q", first.String())
	}

	second, err := NewCacheKey("Lab", Dataset("m:1,m", 2))
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if first.Equal(second) {
		t.Error("a rejected selection must not equal a valid key")
	}
}
