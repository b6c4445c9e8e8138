// Package rowstore holds the projection of op-log entries under LWW
// semantics: an opaque (dataset, row_id) -> (column -> value) map. The
// apply engine is the sole writer; rowstore has no independent identity
// of its own.
package rowstore

import (
	"context"
	"sync"
)

// TombstoneColumn is the distinguished column name the apply engine's
// callers use to mark logical deletion; rowstore never deletes physically.
const TombstoneColumn = "tombstone"

// rowKey identifies a single row within a dataset.
type rowKey struct {
	Dataset string
	RowID   string
}

// Row is a snapshot of one row's fields at the moment it was read.
type Row struct {
	Dataset string
	RowID   string
	Fields  map[string]interface{}
}

// Predicate decides whether a Row should be included in a list() result.
type Predicate func(Row) (bool, error)

// Store is the durable interface over the opaque row projection.
type Store interface {
	// Get returns the field map for (dataset, rowID), or ok=false if the
	// row has never been touched.
	Get(ctx context.Context, dataset, rowID string) (map[string]interface{}, bool, error)

	// SetField is the apply engine's sole write path: it sets one column
	// of one row, creating the row if absent.
	SetField(ctx context.Context, dataset, rowID, column string, value interface{}) error

	// List returns every row in dataset matching predicate.
	List(ctx context.Context, dataset string, predicate Predicate) ([]Row, error)
}

// MemStore is an in-process Store backed by a mutex-guarded map.
type MemStore struct {
	mu   sync.RWMutex
	rows map[rowKey]map[string]interface{}
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{rows: make(map[rowKey]map[string]interface{})}
}

func (s *MemStore) Get(ctx context.Context, dataset, rowID string) (map[string]interface{}, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.rows[rowKey{Dataset: dataset, RowID: rowID}]
	if !ok {
		return nil, false, nil
	}
	return cloneFields(fields), true, nil
}

func (s *MemStore) SetField(ctx context.Context, dataset, rowID, column string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rowKey{Dataset: dataset, RowID: rowID}
	fields, ok := s.rows[key]
	if !ok {
		fields = make(map[string]interface{})
		s.rows[key] = fields
	}
	fields[column] = value
	return nil
}

func (s *MemStore) List(ctx context.Context, dataset string, predicate Predicate) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Row
	for key, fields := range s.rows {
		if key.Dataset != dataset {
			continue
		}
		row := Row{Dataset: key.Dataset, RowID: key.RowID, Fields: cloneFields(fields)}
		if predicate == nil {
			out = append(out, row)
			continue
		}
		ok, err := predicate(row)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func cloneFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
