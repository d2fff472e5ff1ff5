package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// NewItem records an acquisition the agent accepted. Items always start queued.
func (s *Store) NewItem(ctx context.Context, params NewItemParams) (*Item, error) {
	if strings.TrimSpace(params.AgentHandle) == "" {
		return nil, errors.New("agent handle required")
	}
	if strings.TrimSpace(params.AgentName) == "" {
		return nil, errors.New("agent name required")
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		title = params.AgentHandle
	}
	now := nowString()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_items (library_item_id, title, agent_name, agent_handle, status, added_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		params.LibraryItemID,
		title,
		params.AgentName,
		params.AgentHandle,
		StatusQueued,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert queue item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a queue item by identifier. A missing item returns nil, nil.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// List returns queue items filtered by status set (or all items when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items`
	var args []any
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		args = statusArgs(statuses)
	}
	return s.queryItems(ctx, query+` ORDER BY added_at, id`, args...)
}

// ItemsForAgent returns the agent's items in the given statuses.
func (s *Store) ItemsForAgent(ctx context.Context, agentName string, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items WHERE agent_name = ?`
	args := []any{agentName}
	if len(statuses) > 0 {
		query += ` AND status IN (` + makePlaceholders(len(statuses)) + `)`
		args = append(args, statusArgs(statuses)...)
	}
	return s.queryItems(ctx, query+` ORDER BY added_at, id`, args...)
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SetContentPath stores the payload location reported by the agent.
func (s *Store) SetContentPath(ctx context.Context, id int64, path string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_items SET content_path = ?, updated_at = ? WHERE id = ?`,
		nullableString(path),
		nowString(),
		id,
	); err != nil {
		return fmt.Errorf("set content path: %w", err)
	}
	return nil
}

// Remove deletes a failed item. Items in any other status are kept.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE id = ? AND status = ?`, id, StatusFailed)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearFailed removes only failed items from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}
