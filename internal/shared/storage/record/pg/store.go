package pg

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"docscan-backend/internal/shared/errs"
	"docscan-backend/internal/shared/storage/record"
)

// Store implements record.Store on a single Postgres table holding one jsonb
// document per (tbl, pk, sk). The schema lives in storage/db/migrations.
type Store struct {
	DB *sql.DB
}

// Get reads one record.
func (s *Store) Get(ctx context.Context, t record.Table, k record.Key) (record.Item, error) {
	if err := t.Check(k); err != nil {
		return nil, err
	}
	var raw []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT attrs FROM records WHERE tbl = $1 AND pk = $2 AND sk = $3`,
		t.Name, k.Partition, k.Sort,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, record.NotFound(t, k)
	}
	if err != nil {
		return nil, errs.Remote("postgres get record", t.Name, err)
	}
	return decode(raw)
}

// Put upserts the whole record.
func (s *Store) Put(ctx context.Context, t record.Table, item record.Item) error {
	k, err := t.KeyOf(item)
	if err != nil {
		return err
	}
	attrs, err := encode(item)
	if err != nil {
		return errs.Invalid("encode %s item: %v", t.Name, err)
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO records (tbl, pk, sk, attrs, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (tbl, pk, sk) DO UPDATE SET attrs = EXCLUDED.attrs, updated_at = EXCLUDED.updated_at`,
		t.Name, k.Partition, k.Sort, attrs, time.Now().UTC(),
	)
	if err != nil {
		return errs.Remote("postgres put record", t.Name, err)
	}
	return nil
}

// Update merges the patch into the stored jsonb. Zero rows affected means the
// record does not exist.
func (s *Store) Update(ctx context.Context, t record.Table, k record.Key, patch record.Item) error {
	if err := t.Check(k); err != nil {
		return err
	}
	patch = t.Settable(patch)
	if len(patch) == 0 {
		return nil
	}
	attrs, err := encode(patch)
	if err != nil {
		return errs.Invalid("encode %s patch: %v", t.Name, err)
	}
	res, err := s.DB.ExecContext(ctx,
		`UPDATE records SET attrs = attrs || $4::jsonb, updated_at = $5
		 WHERE tbl = $1 AND pk = $2 AND sk = $3`,
		t.Name, k.Partition, k.Sort, attrs, time.Now().UTC(),
	)
	if err != nil {
		return errs.Remote("postgres update record", t.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Remote("postgres update record", t.Name, err)
	}
	if n == 0 {
		return record.NotFound(t, k)
	}
	return nil
}

// Append concatenates values onto a jsonb array inside the row update, so
// concurrent appends serialize on the row lock.
func (s *Store) Append(ctx context.Context, t record.Table, k record.Key, name string, values []string) error {
	ok, err := t.CheckAppend(k, name, values)
	if err != nil || !ok {
		return err
	}
	list, err := json.Marshal(values)
	if err != nil {
		return errs.Invalid("encode %s append: %v", t.Name, err)
	}
	res, err := s.DB.ExecContext(ctx,
		`UPDATE records
		 SET attrs = attrs || jsonb_build_object($4::text, COALESCE(attrs->$4::text, '[]'::jsonb) || $5::jsonb),
		     updated_at = $6
		 WHERE tbl = $1 AND pk = $2 AND sk = $3`,
		t.Name, k.Partition, k.Sort, name, list, time.Now().UTC(),
	)
	if err != nil {
		return errs.Remote("postgres append record", t.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Remote("postgres append record", t.Name, err)
	}
	if n == 0 {
		return record.NotFound(t, k)
	}
	return nil
}

// Delete removes the record if present.
func (s *Store) Delete(ctx context.Context, t record.Table, k record.Key) error {
	if err := t.Check(k); err != nil {
		return err
	}
	if _, err := s.DB.ExecContext(ctx,
		`DELETE FROM records WHERE tbl = $1 AND pk = $2 AND sk = $3`,
		t.Name, k.Partition, k.Sort,
	); err != nil {
		return errs.Remote("postgres delete record", t.Name, err)
	}
	return nil
}

// Query lists every record under partition ordered by sort key.
func (s *Store) Query(ctx context.Context, t record.Table, partition string) ([]record.Item, error) {
	if err := t.Check(record.Key{Partition: partition, Sort: "-"}); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT attrs FROM records WHERE tbl = $1 AND pk = $2 ORDER BY sk`,
		t.Name, partition,
	)
	if err != nil {
		return nil, errs.Remote("postgres query records", t.Name, err)
	}
	defer rows.Close()

	var out []record.Item
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, errs.Remote("postgres scan record", t.Name, err)
		}
		item, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Remote("postgres query records", t.Name, err)
	}
	return out, nil
}

func encode(item record.Item) ([]byte, error) {
	out := make(map[string]any, len(item))
	for k, v := range item {
		if tv, ok := v.(time.Time); ok {
			out[k] = record.FormatTime(tv)
			continue
		}
		out[k] = v
	}
	return json.Marshal(out)
}

func decode(raw []byte) (record.Item, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var item record.Item
	if err := dec.Decode(&item); err != nil {
		return nil, errs.Remote("postgres decode record", "", err)
	}
	return item, nil
}

var _ record.Store = (*Store)(nil)
