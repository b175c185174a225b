package memory

import (
	"context"
	"sort"
	"sync"

	"docscan-backend/internal/shared/storage/record"
)

// Store is an in-memory record.Store for dev and tests.
type Store struct {
	mu     sync.RWMutex
	tables map[string]map[record.Key]record.Item
}

// New returns an empty store.
func New() *Store {
	return &Store{tables: make(map[string]map[record.Key]record.Item)}
}

// Get returns a copy of the stored item.
func (s *Store) Get(ctx context.Context, t record.Table, k record.Key) (record.Item, error) {
	if err := t.Check(k); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.tables[t.Name][k]
	if !ok {
		return nil, record.NotFound(t, k)
	}
	return item.Clone(), nil
}

// Put overwrites the item.
func (s *Store) Put(ctx context.Context, t record.Table, item record.Item) error {
	k, err := t.KeyOf(item)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tbl, ok := s.tables[t.Name]
	if !ok {
		tbl = make(map[record.Key]record.Item)
		s.tables[t.Name] = tbl
	}
	tbl[k] = item.Clone()
	return nil
}

// Update merges patch into an existing item.
func (s *Store) Update(ctx context.Context, t record.Table, k record.Key, patch record.Item) error {
	if err := t.Check(k); err != nil {
		return err
	}
	patch = t.Settable(patch)
	if len(patch) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.tables[t.Name][k]
	if !ok {
		return record.NotFound(t, k)
	}
	for name, v := range patch.Clone() {
		item[name] = v
	}
	return nil
}

// Append extends a list attribute under the store lock.
func (s *Store) Append(ctx context.Context, t record.Table, k record.Key, name string, values []string) error {
	ok, err := t.CheckAppend(k, name, values)
	if err != nil || !ok {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, found := s.tables[t.Name][k]
	if !found {
		return record.NotFound(t, k)
	}
	merged := append([]string{}, item.Strings(name)...)
	item[name] = append(merged, values...)
	return nil
}

// Delete removes the item if present.
func (s *Store) Delete(ctx context.Context, t record.Table, k record.Key) error {
	if err := t.Check(k); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables[t.Name], k)
	return nil
}

// Query returns all items under partition ordered by sort key.
func (s *Store) Query(ctx context.Context, t record.Table, partition string) ([]record.Item, error) {
	if err := t.Check(record.Key{Partition: partition, Sort: "-"}); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []record.Key
	for k := range s.tables[t.Name] {
		if k.Partition == partition {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Sort < keys[j].Sort })
	out := make([]record.Item, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.tables[t.Name][k].Clone())
	}
	return out, nil
}

var _ record.Store = (*Store)(nil)
