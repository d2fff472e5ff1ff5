package queue

import (
	"context"
	"fmt"
	"time"
)

// UpsertRootLocation records the latest probe result for a library root.
func (s *Store) UpsertRootLocation(ctx context.Context, loc RootLocation) error {
	checked := loc.CheckedAt
	if checked.IsZero() {
		checked = time.Now()
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO root_locations (path, reachable, free_bytes, checked_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(path) DO UPDATE SET reachable = excluded.reachable, free_bytes = excluded.free_bytes, checked_at = excluded.checked_at`,
		loc.Path,
		boolToInt(loc.Reachable),
		int64(loc.FreeBytes),
		checked.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("upsert root location: %w", err)
	}
	return nil
}

// RootLocations returns the recorded roots ordered by path.
func (s *Store) RootLocations(ctx context.Context) ([]RootLocation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, reachable, free_bytes, checked_at FROM root_locations ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list root locations: %w", err)
	}
	defer rows.Close()

	var out []RootLocation
	for rows.Next() {
		var (
			loc       RootLocation
			reachable int
			free      int64
			checked   string
		)
		if err := rows.Scan(&loc.Path, &reachable, &free, &checked); err != nil {
			return nil, err
		}
		loc.Reachable = reachable != 0
		if free > 0 {
			loc.FreeBytes = uint64(free)
		}
		if ts, err := parseTimeString(checked); err == nil {
			loc.CheckedAt = ts
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}
