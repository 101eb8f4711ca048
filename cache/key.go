package cache

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// EntityType tags the logical kind of entity a cached collection holds,
// for example "Subject" or "Lab".
type EntityType string

// Module is a coarse grouping of datasets (a dataset family or source system)
// used for bulk invalidation.
type Module string

const (
	ModuleAcuity Module = "acuity"
	ModuleDetect Module = "detect"
)

// DatasetID identifies a dataset together with the module that owns it.
// The module is fixed when the identifier is built, it is never inferred later.
type DatasetID struct {
	ID     int64  `msgpack:"id" yaml:"id" json:"id"`
	Module Module `msgpack:"module" yaml:"module" json:"module"`
}

// Dataset is a shorthand constructor for DatasetID.
func Dataset(module Module, id int64) DatasetID {
	return DatasetID{ID: id, Module: module}
}

// Less reports whether d sorts before other: ID ascending, then module.
func (d DatasetID) Less(other DatasetID) bool {
	if d.ID != other.ID {
		return d.ID < other.ID
	}
	return d.Module < other.Module
}

func (d DatasetID) String() string {
	return string(d.Module) + keyModuleSeparator + strconv.FormatInt(d.ID, 10)
}

const (
	keyEntitySeparator  = "|"
	keyDatasetSeparator = ","
	keyModuleSeparator  = ":"

	// reservedKeyChars may not appear in entity types or modules, otherwise
	// two different selections could share an identity string.
	reservedKeyChars = keyEntitySeparator + keyDatasetSeparator + keyModuleSeparator
)

// CacheKey identifies one cached computation: an entity type plus the
// normalized (sorted, deduplicated) set of datasets it was computed from.
// Keys are immutable; build them with NewCacheKey.
type CacheKey struct {
	entityType EntityType
	datasets   []DatasetID
	id         string
}

// NewCacheKey normalizes the dataset selection and builds the key.
// Selections that differ only in order or duplicates yield equal keys.
func NewCacheKey(entityType EntityType, datasets ...DatasetID) (CacheKey, error) {
	if entityType == "" {
		return CacheKey{}, fmt.Errorf("%w: entity type is empty", ErrInvalidKey)
	}
	if len(datasets) == 0 {
		return CacheKey{}, fmt.Errorf("%w: dataset selection is empty", ErrInvalidKey)
	}
	if strings.ContainsAny(string(entityType), reservedKeyChars) {
		return CacheKey{}, fmt.Errorf("%w: entity type %q contains one of %q", ErrInvalidKey, entityType, reservedKeyChars)
	}
	for _, d := range datasets {
		if strings.ContainsAny(string(d.Module), reservedKeyChars) {
			return CacheKey{}, fmt.Errorf("%w: module %q contains one of %q", ErrInvalidKey, d.Module, reservedKeyChars)
		}
	}

	normalized := NormalizeDatasets(datasets)

	parts := make([]string, len(normalized))
	for i, d := range normalized {
		parts[i] = d.String()
	}

	return CacheKey{
		entityType: entityType,
		datasets:   normalized,
		id:         string(entityType) + keyEntitySeparator + strings.Join(parts, keyDatasetSeparator),
	}, nil
}

// NormalizeDatasets returns a sorted copy of datasets with duplicates removed.
func NormalizeDatasets(datasets []DatasetID) []DatasetID {
	out := make([]DatasetID, len(datasets))
	copy(out, datasets)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })

	n := 0
	for i, d := range out {
		if i > 0 && d == out[n-1] {
			continue
		}
		out[n] = d
		n++
	}
	return out[:n]
}

// EntityType returns the entity tag of the key.
func (k CacheKey) EntityType() EntityType {
	return k.entityType
}

// Datasets returns a copy of the normalized dataset scope.
func (k CacheKey) Datasets() []DatasetID {
	return append([]DatasetID(nil), k.datasets...)
}

// String returns the identity of the key. Two keys are equal iff their
// identities are equal.
func (k CacheKey) String() string {
	return k.id
}

// IsZero reports whether the key was never built.
func (k CacheKey) IsZero() bool {
	return k.id == ""
}

// Equal reports whether both keys identify the same computation.
func (k CacheKey) Equal(other CacheKey) bool {
	return k.id == other.id
}

// Intersects reports whether the key scope shares at least one dataset with
// the given selection.
func (k CacheKey) Intersects(datasets ...DatasetID) bool {
	for _, want := range datasets {
		i := sort.Search(len(k.datasets), func(i int) bool { return !k.datasets[i].Less(want) })
		if i < len(k.datasets) && k.datasets[i] == want {
			return true
		}
	}
	return false
}

// HasModule reports whether any dataset in the key scope belongs to module.
func (k CacheKey) HasModule(module Module) bool {
	for _, d := range k.datasets {
		if d.Module == module {
			return true
		}
	}
	return false
}
