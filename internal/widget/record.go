package widget

import (
	"sync"

	"github.com/MarkoPoloResearchLab/reseller_cta/internal/jsontree"
)

// Record maps field names to contact values.
type Record map[string]string

// Clone returns an independent copy.
func (record Record) Clone() Record {
	cloned := make(Record, len(record))
	for field, value := range record {
		cloned[field] = value
	}
	return cloned
}

// MapResponse builds a record with one entry per binding, read from the binding's path and
// falling back to the field's default when the value is missing or empty.
func MapResponse(response jsontree.Value, mapping []FieldBinding, defaults Record) Record {
	mapped := make(Record, len(mapping))
	for _, binding := range mapping {
		mapped[binding.Field] = defaults[binding.Field]
		node, found := response.Lookup(binding.Path)
		if !found {
			continue
		}
		text, isText := node.Text()
		if !isText || text == "" {
			continue
		}
		mapped[binding.Field] = text
	}
	return mapped
}

// mergeOverDefaults keeps populated mapped fields from source and defaults the rest.
func mergeOverDefaults(source Record, mapping []FieldBinding, defaults Record) Record {
	merged := defaults.Clone()
	for _, binding := range mapping {
		if _, present := merged[binding.Field]; !present {
			merged[binding.Field] = ""
		}
		if value := source[binding.Field]; value != "" {
			merged[binding.Field] = value
		}
	}
	return merged
}

// Store owns the current reseller record.
type Store struct {
	recordMutex sync.RWMutex
	record      Record
}

func NewStore(initial Record) *Store {
	return &Store{record: initial.Clone()}
}

// Snapshot returns a copy that callers may keep.
func (store *Store) Snapshot() Record {
	store.recordMutex.RLock()
	defer store.recordMutex.RUnlock()
	return store.record.Clone()
}

func (store *Store) Replace(record Record) {
	cloned := record.Clone()
	store.recordMutex.Lock()
	store.record = cloned
	store.recordMutex.Unlock()
}
