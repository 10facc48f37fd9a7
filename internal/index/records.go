package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// UpsertDraft inserts or refreshes the draft for d.Path and returns its id.
// An existing row keeps its id and created_at and returns to draft state.
func (s *Store) UpsertDraft(ctx context.Context, d Draft) (int64, error) {
	if strings.TrimSpace(d.Path) == "" {
		return 0, errors.New("upsert draft: path required")
	}
	now := s.timestamp()
	var id int64
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, `
INSERT INTO files (path, content_hash, doc_type, vendor, model, category_slug, group_slug,
    device_slug, summary, confidence, confirmed, size_bytes, created_at, updated_at, indexed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)
ON CONFLICT(path) DO UPDATE SET
    content_hash  = excluded.content_hash,
    doc_type      = excluded.doc_type,
    vendor        = excluded.vendor,
    model         = excluded.model,
    category_slug = excluded.category_slug,
    group_slug    = excluded.group_slug,
    device_slug   = excluded.device_slug,
    summary       = excluded.summary,
    confidence    = excluded.confidence,
    confirmed     = 0,
    confirmed_at  = NULL,
    size_bytes    = excluded.size_bytes,
    updated_at    = excluded.updated_at,
    indexed_at    = excluded.indexed_at
RETURNING id`,
			d.Path, d.ContentHash, d.DocType, d.Vendor, d.Model, d.CategorySlug, d.GroupSlug,
			d.DeviceSlug, d.Summary, d.Confidence, d.SizeBytes, now, now, now,
		).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("upsert draft %s: %w", d.Path, err)
	}
	return id, nil
}

// Get returns the record at path, or nil when none exists.
func (s *Store) Get(ctx context.Context, path string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM files WHERE path = ?", path)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", path, err)
	}
	return rec, nil
}

// GetByID returns the record with id, or nil when none exists.
func (s *Store) GetByID(ctx context.Context, id int64) (*Record, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM files WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record %d: %w", id, err)
	}
	return rec, nil
}

// FindByHash returns the most recently updated record with the given content
// hash, or nil.
func (s *Store) FindByHash(ctx context.Context, hash string) (*Record, error) {
	if hash == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM files WHERE content_hash = ? ORDER BY updated_at DESC LIMIT 1", hash)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by hash: %w", err)
	}
	return rec, nil
}

// ConfirmAndRelocate marks the record confirmed and rewrites its path in one
// transaction.
func (s *Store) ConfirmAndRelocate(ctx context.Context, id int64, newPath string) error {
	if strings.TrimSpace(newPath) == "" {
		return errors.New("confirm: new path required")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var confirmed int
		err := tx.QueryRowContext(ctx, "SELECT confirmed FROM files WHERE id = ?", id).Scan(&confirmed)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load record %d: %w", id, err)
		}
		if confirmed != 0 {
			return ErrAlreadyConfirmed
		}

		var owner int64
		err = tx.QueryRowContext(ctx, "SELECT id FROM files WHERE path = ? AND id <> ?", newPath, id).Scan(&owner)
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s (record %d)", ErrPathConflict, newPath, owner)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check target path: %w", err)
		}

		now := s.timestamp()
		if _, err := tx.ExecContext(ctx,
			"UPDATE files SET path = ?, confirmed = 1, confirmed_at = ?, updated_at = ? WHERE id = ?",
			newPath, now, now, id,
		); err != nil {
			return fmt.Errorf("confirm record %d: %w", id, err)
		}
		return nil
	})
}

// UpdateFields applies operator edits. Every name must be editable; vendor
// or model changes recompute device_slug.
func (s *Store) UpdateFields(ctx context.Context, id int64, fields map[string]string) (*Record, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		if !EditableField(name) {
			return nil, &FieldError{Field: name}
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return s.GetByID(ctx, id)
	}
	sort.Strings(names)

	var updated *Record
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		rec, err := scanRecord(tx.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM files WHERE id = ?", id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load record %d: %w", id, err)
		}

		sets := make([]string, 0, len(names)+2)
		args := make([]any, 0, len(names)+3)
		for _, name := range names {
			value := strings.TrimSpace(fields[name])
			sets = append(sets, name+" = ?")
			args = append(args, value)
			switch name {
			case FieldVendor:
				rec.Vendor = value
			case FieldModel:
				rec.Model = value
			}
		}
		_, vendorEdited := fields[FieldVendor]
		_, modelEdited := fields[FieldModel]
		if vendorEdited || modelEdited {
			sets = append(sets, "device_slug = ?")
			args = append(args, s.deviceSlug(rec.Vendor, rec.Model))
		}
		sets = append(sets, "updated_at = ?")
		args = append(args, s.timestamp(), id)

		if _, err := tx.ExecContext(ctx, "UPDATE files SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
			return fmt.Errorf("update record %d: %w", id, err)
		}
		updated, err = scanRecord(tx.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM files WHERE id = ?", id))
		if err != nil {
			return fmt.Errorf("reload record %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the record at path and reports whether one existed.
func (s *Store) Delete(ctx context.Context, path string) (bool, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM files WHERE path = ?", path)
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}
