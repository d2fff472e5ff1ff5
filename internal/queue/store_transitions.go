package queue

import (
	"context"
	"fmt"
	"time"
)

// Transition moves an item from one status to the next when it is still in
// from. A non-empty message replaces the stored error message. It reports
// false without error when another writer got there first. Imported is
// reachable only through CommitImport.
func (s *Store) Transition(ctx context.Context, id int64, from, to Status, message string) (bool, error) {
	if to == StatusImported || !CanTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return s.compareAndSet(ctx, id, from, to, message)
}

// ClaimForImport moves a completed item to importing. Exactly one caller wins.
func (s *Store) ClaimForImport(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET status = ?, import_source = NULL, import_destination = NULL, import_size = NULL,
             import_quality = NULL, last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusImporting,
		nowString(),
		nowString(),
		id,
		StatusCompleted,
	)
	if err != nil {
		return false, fmt.Errorf("claim for import: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// RecordImportTarget persists the planned transfer for an importing item.
func (s *Store) RecordImportTarget(ctx context.Context, id int64, target ImportTarget) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET import_source = ?, import_destination = ?, import_size = ?, import_quality = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		target.Source,
		target.Destination,
		target.Size,
		nullableString(target.Quality),
		nowString(),
		id,
		StatusImporting,
	)
	if err != nil {
		return fmt.Errorf("record import target: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("%w: item %d is not importing", ErrInvalidTransition, id)
	}
	return nil
}

// MarkFailed moves a non-terminal item to failed with a reason. It reports
// false when the item was already terminal.
func (s *Store) MarkFailed(ctx context.Context, id int64, reason string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET status = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?)`,
		StatusFailed,
		nullableString(reason),
		nowString(),
		id,
		StatusImported,
		StatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("mark failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// RollbackImport returns an interrupted import to completed so it is retried.
// Only startup reconciliation uses this edge.
func (s *Store) RollbackImport(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET status = ?, import_source = NULL, import_destination = NULL, import_size = NULL,
             import_quality = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusCompleted,
		nowString(),
		id,
		StatusImporting,
	)
	if err != nil {
		return false, fmt.Errorf("rollback import: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// UpdateHeartbeat updates the last heartbeat timestamp for an importing item.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := nowString()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_items SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now,
		now,
		id,
		StatusImporting,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// StaleImports returns importing items whose heartbeat is older than cutoff.
func (s *Store) StaleImports(ctx context.Context, cutoff time.Time) ([]*Item, error) {
	return s.queryItems(
		ctx,
		`SELECT `+itemColumns+` FROM queue_items
         WHERE status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)
         ORDER BY id`,
		StatusImporting,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
}

func (s *Store) compareAndSet(ctx context.Context, id int64, from, to Status, message string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET status = ?, error_message = COALESCE(?, error_message), updated_at = ?
         WHERE id = ? AND status = ?`,
		to,
		nullableString(message),
		nowString(),
		id,
		from,
	)
	if err != nil {
		return false, fmt.Errorf("transition %s -> %s: %w", from, to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}
