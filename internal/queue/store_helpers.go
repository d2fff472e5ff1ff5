package queue

import (
	"database/sql"
	"errors"
	"time"
)

type rowScanner interface{ Scan(dest ...any) error }

const itemColumns = "id, library_item_id, title, agent_name, agent_handle, status, error_message, content_path, import_source, import_destination, import_size, import_quality, last_heartbeat, added_at, updated_at, imported_at"

func scanItem(scanner rowScanner) (*Item, error) {
	var (
		item          Item
		statusStr     string
		errorMessage  sql.NullString
		contentPath   sql.NullString
		importSource  sql.NullString
		importDest    sql.NullString
		importSize    sql.NullInt64
		importQuality sql.NullString
		heartbeatRaw  sql.NullString
		addedRaw      sql.NullString
		updatedRaw    sql.NullString
		importedAtRaw sql.NullString
	)
	if err := scanner.Scan(
		&item.ID,
		&item.LibraryItemID,
		&item.Title,
		&item.AgentName,
		&item.AgentHandle,
		&statusStr,
		&errorMessage,
		&contentPath,
		&importSource,
		&importDest,
		&importSize,
		&importQuality,
		&heartbeatRaw,
		&addedRaw,
		&updatedRaw,
		&importedAtRaw,
	); err != nil {
		return nil, err
	}
	item.Status = Status(statusStr)
	item.ErrorMessage = errorMessage.String
	item.ContentPath = contentPath.String
	item.Import = ImportTarget{
		Source:      importSource.String,
		Destination: importDest.String,
		Size:        importSize.Int64,
		Quality:     importQuality.String,
	}
	if added, err := parseTimeString(addedRaw.String); err == nil {
		item.AddedAt = added
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	item.LastHeartbeat = parseOptionalTime(heartbeatRaw)
	item.ImportedAt = parseOptionalTime(importedAtRaw)
	return &item, nil
}

const libraryColumns = "id, title, event_date, status, created_at, updated_at"

func scanLibraryItem(scanner rowScanner) (*LibraryItem, error) {
	var (
		item       LibraryItem
		eventDate  sql.NullString
		statusStr  string
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(&item.ID, &item.Title, &eventDate, &statusStr, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	item.EventDate = eventDate.String
	item.Status = LibraryStatus(statusStr)
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return &item, nil
}

const recordColumns = "id, queue_item_id, library_item_id, source_path, destination_path, quality, size_bytes, decision, transfer_mode, imported_at"

func scanImportRecord(scanner rowScanner) (*ImportRecord, error) {
	var (
		rec         ImportRecord
		quality     sql.NullString
		importedRaw string
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.QueueItemID,
		&rec.LibraryItemID,
		&rec.SourcePath,
		&rec.DestinationPath,
		&quality,
		&rec.SizeBytes,
		&rec.Decision,
		&rec.TransferMode,
		&importedRaw,
	); err != nil {
		return nil, err
	}
	rec.Quality = quality.String
	if ts, err := parseTimeString(importedRaw); err == nil {
		rec.ImportedAt = ts
	}
	return &rec, nil
}

func parseOptionalTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	ts, err := parseTimeString(raw.String)
	if err != nil {
		return nil
	}
	return &ts
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
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

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func statusArgs(statuses []Status) []any {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	return args
}
