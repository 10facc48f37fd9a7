package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// LogEvent appends one audit row.
func (s *Store) LogEvent(ctx context.Context, eventType, path, detail string) error {
	if _, err := s.execWithRetry(ctx,
		"INSERT INTO events (event_type, path, detail, created_at) VALUES (?, ?, ?, ?)",
		eventType, path, detail, s.timestamp(),
	); err != nil {
		return fmt.Errorf("log event %s: %w", eventType, err)
	}
	return nil
}

// Events returns the most recent audit rows, newest first.
func (s *Store) Events(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, event_type, path, detail, created_at FROM events ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	var events []Event
	for rows.Next() {
		var (
			ev         Event
			createdRaw string
		)
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.Path, &ev.Detail, &createdRaw); err != nil {
			return nil, err
		}
		if t, err := parseTimeString(createdRaw); err == nil {
			ev.CreatedAt = t
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Stats counts records by state and doc type.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByDocType: make(map[string]int)}
	rows, err := s.db.QueryContext(ctx, "SELECT doc_type, confirmed, COUNT(*) FROM files GROUP BY doc_type, confirmed")
	if err != nil {
		return stats, fmt.Errorf("stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			docType   string
			confirmed int
			count     int
		)
		if err := rows.Scan(&docType, &confirmed, &count); err != nil {
			return stats, err
		}
		stats.Total += count
		stats.ByDocType[docType] += count
		if confirmed != 0 {
			stats.Confirmed += count
		} else {
			stats.Drafts += count
		}
	}
	return stats, rows.Err()
}

// CheckHealth returns diagnostic information about the index database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("index database path is unknown")
	}
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat index database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("index database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping index database: %w", err)
	}
	health.DatabaseReadable = true

	if err := s.db.QueryRowContext(connCtx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			health.Error = err.Error()
			return health, fmt.Errorf("read schema version: %w", err)
		}
	}
	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM files").Scan(&health.TotalRecords); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count records: %w", err)
	}

	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrity, "ok")
	return health, nil
}
