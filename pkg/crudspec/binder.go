package crudspec

import (
	"context"
	"fmt"
	"time"

	"github.com/bitechdev/CrudSpec/pkg/common"
	"github.com/bitechdev/CrudSpec/pkg/schema"
)

// Record is a row-access handle bound to a schema. It carries the
// current field values and knows how to persist itself; the database it
// runs on is passed per call so the same handle works inside a
// transaction.
type Record struct {
	schema *schema.Schema
	fields map[string]interface{}
	// changed tracks fields assigned since load, so updates only write
	// what moved.
	changed map[string]struct{}
	exists  bool
}

// NewRecord creates an empty handle for inserts.
func NewRecord(s *schema.Schema) *Record {
	return &Record{
		schema:  s,
		fields:  make(map[string]interface{}),
		changed: make(map[string]struct{}),
	}
}

// FindRecord loads a row by primary key. Soft-deleted rows count as
// missing.
func FindRecord(ctx context.Context, db common.Database, s *schema.Schema, pk interface{}) (*Record, error) {
	q := db.NewSelect().
		Table(s.Table).
		Where(common.QuoteIdent(s.PrimaryKey)+" = ?", pk)
	if s.SoftDelete {
		q = q.Where(common.QuoteIdent(schema.SoftDeleteColumn) + " IS NULL")
	}

	var rows []map[string]interface{}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s %v", ErrRecordNotFound, s.Model, pk)
	}

	return &Record{
		schema:  s,
		fields:  rows[0],
		changed: make(map[string]struct{}),
		exists:  true,
	}, nil
}

// Table returns the backing table name.
func (r *Record) Table() string { return r.schema.Table }

// Exists reports whether the handle is bound to a stored row.
func (r *Record) Exists() bool { return r.exists }

// PrimaryKey returns the current primary-key value, nil before insert.
func (r *Record) PrimaryKey() interface{} {
	return r.fields[r.schema.PrimaryKey]
}

// Get returns the current value of a field.
func (r *Record) Get(name string) interface{} {
	return r.fields[name]
}

// Fields returns the current field map. Password fields are masked out
// so record data can be serialized directly.
func (r *Record) Fields() map[string]interface{} {
	out := make(map[string]interface{}, len(r.fields))
	for name, value := range r.fields {
		if f := r.schema.Field(name); f != nil && f.BaseType == schema.TypePassword {
			continue
		}
		out[name] = value
	}
	return out
}

// Set assigns one field. Fields absent from the schema are rejected.
func (r *Record) Set(name string, value interface{}) error {
	if !r.schema.HasField(name) {
		return fmt.Errorf("unknown field %q on %s", name, r.schema.Model)
	}
	r.fields[name] = value
	r.changed[name] = struct{}{}
	return nil
}

// SetAll assigns every entry of values via Set.
func (r *Record) SetAll(values map[string]interface{}) error {
	for name, value := range values {
		if err := r.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

// setRaw assigns a column the schema does not declare as a field, such
// as timestamp or tombstone columns.
func (r *Record) setRaw(column string, value interface{}) {
	r.fields[column] = value
	r.changed[column] = struct{}{}
}

// StampCreated sets created_at and updated_at when the schema tracks
// timestamps.
func (r *Record) StampCreated(now time.Time) {
	if r.schema.Timestamps {
		r.setRaw(schema.CreatedAtColumn, now)
		r.setRaw(schema.UpdatedAtColumn, now)
	}
}

// StampUpdated bumps updated_at when the schema tracks timestamps.
// Called on every update, including no-op ones.
func (r *Record) StampUpdated(now time.Time) {
	if r.schema.Timestamps {
		r.setRaw(schema.UpdatedAtColumn, now)
	}
}

// Insert writes the record and binds the generated primary key.
func (r *Record) Insert(ctx context.Context, db common.Database) error {
	q := db.NewInsert().Table(r.schema.Table)
	for name := range r.changed {
		q = q.Value(name, r.fields[name])
	}

	if db.DriverName() == "postgres" {
		var pk interface{}
		if err := q.Returning(common.QuoteIdent(r.schema.PrimaryKey)).ExecReturning(ctx, &pk); err != nil {
			return err
		}
		r.fields[r.schema.PrimaryKey] = pk
	} else {
		res, err := q.Exec(ctx)
		if err != nil {
			return err
		}
		if _, assigned := r.fields[r.schema.PrimaryKey]; !assigned {
			if id, err := res.LastInsertId(); err == nil {
				r.fields[r.schema.PrimaryKey] = id
			}
		}
	}

	r.exists = true
	r.changed = make(map[string]struct{})
	return nil
}

// Update writes the changed fields of a stored row. Writing zero
// columns is a no-op at the SQL level, so callers that must bump
// updated_at stamp before calling.
func (r *Record) Update(ctx context.Context, db common.Database) error {
	if !r.exists {
		return fmt.Errorf("update on unsaved %s record", r.schema.Model)
	}
	if len(r.changed) == 0 {
		return nil
	}

	values := make(map[string]interface{}, len(r.changed))
	for name := range r.changed {
		values[name] = r.fields[name]
	}

	_, err := db.NewUpdate().
		Table(r.schema.Table).
		SetMap(values).
		Where(common.QuoteIdent(r.schema.PrimaryKey)+" = ?", r.PrimaryKey()).
		Exec(ctx)
	if err != nil {
		return err
	}
	r.changed = make(map[string]struct{})
	return nil
}

// Delete removes the row.
func (r *Record) Delete(ctx context.Context, db common.Database) error {
	_, err := db.NewDelete().
		Table(r.schema.Table).
		Where(common.QuoteIdent(r.schema.PrimaryKey)+" = ?", r.PrimaryKey()).
		Exec(ctx)
	return err
}

// SoftDelete marks the tombstone column and bumps updated_at.
func (r *Record) SoftDelete(ctx context.Context, db common.Database, now time.Time) error {
	r.setRaw(schema.SoftDeleteColumn, now)
	r.StampUpdated(now)
	return r.Update(ctx, db)
}
