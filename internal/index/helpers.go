package index

import (
	"database/sql"
	"errors"
	"time"
)

const recordColumns = "id, path, content_hash, doc_type, vendor, model, category_slug, group_slug, device_slug, summary, confidence, confirmed, size_bytes, created_at, updated_at, indexed_at, confirmed_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(scanner rowScanner) (*Record, error) {
	var (
		rec          Record
		confirmed    int64
		createdRaw   string
		updatedRaw   string
		indexedRaw   string
		confirmedRaw sql.NullString
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.Path,
		&rec.ContentHash,
		&rec.DocType,
		&rec.Vendor,
		&rec.Model,
		&rec.CategorySlug,
		&rec.GroupSlug,
		&rec.DeviceSlug,
		&rec.Summary,
		&rec.Confidence,
		&confirmed,
		&rec.SizeBytes,
		&createdRaw,
		&updatedRaw,
		&indexedRaw,
		&confirmedRaw,
	); err != nil {
		return nil, err
	}
	rec.Confirmed = confirmed != 0
	if t, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		rec.UpdatedAt = t
	}
	if t, err := parseTimeString(indexedRaw); err == nil {
		rec.IndexedAt = t
	}
	if confirmedRaw.Valid {
		if t, err := parseTimeString(confirmedRaw.String); err == nil {
			rec.ConfirmedAt = &t
		}
	}
	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
