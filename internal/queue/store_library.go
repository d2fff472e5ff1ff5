package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// NewLibraryItem adds a wanted entry to the library.
func (s *Store) NewLibraryItem(ctx context.Context, title, eventDate string) (*LibraryItem, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("library item title required")
	}
	now := nowString()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO library_items (title, event_date, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		title,
		nullableString(strings.TrimSpace(eventDate)),
		LibraryWanted,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert library item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.LibraryItem(ctx, id)
}

// LibraryItem fetches a library entry. A missing entry returns nil, nil.
func (s *Store) LibraryItem(ctx context.Context, id int64) (*LibraryItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+libraryColumns+` FROM library_items WHERE id = ?`, id)
	item, err := scanLibraryItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get library item: %w", err)
	}
	return item, nil
}

// ListLibrary returns every library entry ordered by creation.
func (s *Store) ListLibrary(ctx context.Context) ([]*LibraryItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+libraryColumns+` FROM library_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list library: %w", err)
	}
	defer rows.Close()

	var items []*LibraryItem
	for rows.Next() {
		item, err := scanLibraryItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
