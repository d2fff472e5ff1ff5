package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ferry/internal/services"
)

// CommitImport writes the ledger record, marks the queue item imported and
// the library item downloaded in one transaction. Nothing is written unless
// all three succeed.
func (s *Store) CommitImport(ctx context.Context, rec *ImportRecord) error {
	if rec == nil {
		return errors.New("import record is nil")
	}
	if rec.Decision == "" {
		rec.Decision = DecisionApproved
	}
	if rec.ImportedAt.IsZero() {
		rec.ImportedAt = time.Now().UTC()
	}
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		return s.commitImportTx(ctx, rec)
	})
}

func (s *Store) commitImportTx(ctx context.Context, rec *ImportRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import commit: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stamp := rec.ImportedAt.UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO import_records (queue_item_id, library_item_id, source_path, destination_path, quality, size_bytes, decision, transfer_mode, imported_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.QueueItemID,
		rec.LibraryItemID,
		rec.SourcePath,
		rec.DestinationPath,
		nullableString(rec.Quality),
		rec.SizeBytes,
		rec.Decision,
		rec.TransferMode,
		stamp,
	)
	if err != nil {
		return fmt.Errorf("insert import record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	res, err = tx.ExecContext(
		ctx,
		`UPDATE queue_items SET status = ?, imported_at = ?, last_heartbeat = NULL, error_message = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusImported,
		stamp,
		stamp,
		rec.QueueItemID,
		StatusImporting,
	)
	if err != nil {
		return fmt.Errorf("mark imported: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected != 1 {
		return fmt.Errorf("%w: queue item %d is not importing", ErrInvalidTransition, rec.QueueItemID)
	}

	res, err = tx.ExecContext(
		ctx,
		`UPDATE library_items SET status = ?, updated_at = ? WHERE id = ?`,
		LibraryDownloaded,
		stamp,
		rec.LibraryItemID,
	)
	if err != nil {
		return fmt.Errorf("mark library item downloaded: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected != 1 {
		return fmt.Errorf("library item %d: %w", rec.LibraryItemID, services.ErrNotFound)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	rec.ID = id
	return nil
}

// ImportRecordForItem returns the ledger entry for a queue item, or nil.
func (s *Store) ImportRecordForItem(ctx context.Context, queueItemID int64) (*ImportRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM import_records WHERE queue_item_id = ?`, queueItemID)
	rec, err := scanImportRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get import record: %w", err)
	}
	return rec, nil
}

// ImportRecords returns the newest ledger entries first. A limit <= 0 returns all.
func (s *Store) ImportRecords(ctx context.Context, limit int) ([]*ImportRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM import_records ORDER BY imported_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list import records: %w", err)
	}
	defer rows.Close()

	var records []*ImportRecord
	for rows.Next() {
		rec, err := scanImportRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
