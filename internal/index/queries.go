package index

import (
	"context"
	"fmt"
	"strings"
)

const defaultOrder = "updated_at DESC"

var orderColumns = map[string]bool{
	"updated_at": true,
	"created_at": true,
	"confidence": true,
	"size_bytes": true,
	"path":       true,
}

// ParseOrder validates an order_by expression of the form "column" or
// "column ASC|DESC" and returns its canonical SQL form.
func ParseOrder(raw string) (string, error) {
	fields := strings.Fields(strings.ToLower(raw))
	switch len(fields) {
	case 0:
		return defaultOrder, nil
	case 1, 2:
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOrder, raw)
	}
	if !orderColumns[fields[0]] {
		return "", fmt.Errorf("%w: %q", ErrInvalidOrder, raw)
	}
	direction := "ASC"
	if len(fields) == 2 {
		switch fields[1] {
		case "asc":
		case "desc":
			direction = "DESC"
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidOrder, raw)
		}
	}
	return fields[0] + " " + direction, nil
}

// ListByDevice returns the confirmed records of one device.
func (s *Store) ListByDevice(ctx context.Context, deviceSlug string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM files WHERE device_slug = ? AND confirmed = 1 ORDER BY doc_type, path",
		deviceSlug)
	if err != nil {
		return nil, fmt.Errorf("list device %s: %w", deviceSlug, err)
	}
	return scanRecords(rows)
}

// ListDrafts returns records awaiting approval, oldest first.
func (s *Store) ListDrafts(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM files WHERE confirmed = 0 ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	return scanRecords(rows)
}

// ListConfirmed returns every confirmed record.
func (s *Store) ListConfirmed(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM files WHERE confirmed = 1 ORDER BY category_slug, group_slug, device_slug, path")
	if err != nil {
		return nil, fmt.Errorf("list confirmed: %w", err)
	}
	return scanRecords(rows)
}

// Search filters records by q.
func (s *Store) Search(ctx context.Context, q Query) ([]Record, error) {
	order, err := ParseOrder(q.OrderBy)
	if err != nil {
		return nil, err
	}
	var (
		where []string
		args  []any
	)
	if q.DocType != "" {
		where = append(where, "doc_type = ?")
		args = append(args, q.DocType)
	}
	if q.DeviceSlug != "" {
		where = append(where, "device_slug = ?")
		args = append(args, q.DeviceSlug)
	}
	if q.Category != "" {
		where = append(where, "category_slug = ?")
		args = append(args, q.Category)
	}
	if q.Group != "" {
		where = append(where, "group_slug = ?")
		args = append(args, q.Group)
	}
	if kw := strings.TrimSpace(q.Keyword); kw != "" {
		where = append(where, "(path LIKE ? ESCAPE '\\' OR summary LIKE ? ESCAPE '\\')")
		pattern := "%" + escapeLike(kw) + "%"
		args = append(args, pattern, pattern)
	}
	if q.Confirmed != nil {
		where = append(where, "confirmed = ?")
		args = append(args, boolToInt(*q.Confirmed))
	}

	query := "SELECT " + recordColumns + " FROM files"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + order + ", id"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}
	return scanRecords(rows)
}

// CountByDevice returns confirmed record counts per doc type for one device.
func (s *Store) CountByDevice(ctx context.Context, deviceSlug string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT doc_type, COUNT(*) FROM files WHERE device_slug = ? AND confirmed = 1 GROUP BY doc_type",
		deviceSlug)
	if err != nil {
		return nil, fmt.Errorf("count device %s: %w", deviceSlug, err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var (
			docType string
			count   int
		)
		if err := rows.Scan(&docType, &count); err != nil {
			return nil, err
		}
		counts[docType] = count
	}
	return counts, rows.Err()
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
