package record

import (
	"context"
	"fmt"
	"strings"

	"docscan-backend/internal/shared/errs"
)

// ErrInvalidKey is returned before any remote call when a key attribute is missing.
var ErrInvalidKey = fmt.Errorf("%w: missing key attribute", errs.ErrInvalidInput)

// Table names a record table and its key schema. SortKey is empty for
// partition-only tables.
type Table struct {
	Name         string
	PartitionKey string
	SortKey      string
}

// Key identifies one record.
type Key struct {
	Partition string
	Sort      string
}

// Store is the record gateway. Update only touches attributes present in the
// patch and fails with errs.ErrNotFound instead of creating a record. An empty
// patch is a no-op and issues no remote call. Delete is idempotent.
//
// Append adds values to the end of a list attribute in one atomic write, so
// concurrent appends to the same record never drop each other's values. It
// shares Update's not-found and empty-input rules.
type Store interface {
	Get(ctx context.Context, t Table, k Key) (Item, error)
	Put(ctx context.Context, t Table, item Item) error
	Update(ctx context.Context, t Table, k Key, patch Item) error
	Append(ctx context.Context, t Table, k Key, name string, values []string) error
	Delete(ctx context.Context, t Table, k Key) error
	Query(ctx context.Context, t Table, partition string) ([]Item, error)
}

// Check validates that k carries every key attribute t requires.
func (t Table) Check(k Key) error {
	if strings.TrimSpace(t.Name) == "" || strings.TrimSpace(t.PartitionKey) == "" {
		return fmt.Errorf("%w: table %q has no name or partition key", errs.ErrInvalidInput, t.Name)
	}
	if strings.TrimSpace(k.Partition) == "" {
		return fmt.Errorf("%w: %s.%s", ErrInvalidKey, t.Name, t.PartitionKey)
	}
	if t.SortKey != "" && strings.TrimSpace(k.Sort) == "" {
		return fmt.Errorf("%w: %s.%s", ErrInvalidKey, t.Name, t.SortKey)
	}
	return nil
}

// KeyOf extracts and validates the key of item.
func (t Table) KeyOf(item Item) (Key, error) {
	k := Key{Partition: item.String(t.PartitionKey)}
	if t.SortKey != "" {
		k.Sort = item.String(t.SortKey)
	}
	if err := t.Check(k); err != nil {
		return Key{}, err
	}
	return k, nil
}

// IsKeyAttr reports whether name is one of the table's key attributes.
func (t Table) IsKeyAttr(name string) bool {
	return name == t.PartitionKey || (t.SortKey != "" && name == t.SortKey)
}

// Settable returns the patch without key attributes.
func (t Table) Settable(patch Item) Item {
	out := make(Item, len(patch))
	for k, v := range patch {
		if t.IsKeyAttr(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// CheckAppend validates an Append call. ok is false when there is nothing to
// write.
func (t Table) CheckAppend(k Key, name string, values []string) (ok bool, err error) {
	if err := t.Check(k); err != nil {
		return false, err
	}
	if strings.TrimSpace(name) == "" || t.IsKeyAttr(name) {
		return false, fmt.Errorf("%w: cannot append to attribute %q of %s", errs.ErrInvalidInput, name, t.Name)
	}
	return len(values) > 0, nil
}

// NotFound builds the not-found error backends return for k.
func NotFound(t Table, k Key) error {
	if k.Sort == "" {
		return errs.NotFound("%s %s", t.Name, k.Partition)
	}
	return errs.NotFound("%s %s/%s", t.Name, k.Partition, k.Sort)
}
