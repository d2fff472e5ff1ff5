package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusImporting   Status = "importing"
	StatusImported    Status = "imported"
	StatusFailed      Status = "failed"
)

var allStatuses = []Status{
	StatusQueued,
	StatusDownloading,
	StatusPaused,
	StatusCompleted,
	StatusImporting,
	StatusImported,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a user-provided value into a Status.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[status]
	return status, ok
}

// ActiveStatuses are the statuses the poller reconciles against an agent.
var ActiveStatuses = []Status{StatusQueued, StatusDownloading, StatusPaused}

// LibraryStatus tracks whether a wanted item has been fulfilled.
type LibraryStatus string

const (
	LibraryWanted     LibraryStatus = "wanted"
	LibraryDownloaded LibraryStatus = "downloaded"
)

// LibraryItem is an entry the user wants in the library.
type LibraryItem struct {
	ID        int64
	Title     string
	EventDate string
	Status    LibraryStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is one acquisition tracked through the queue.
type Item struct {
	ID            int64
	LibraryItemID int64
	Title         string
	AgentName     string
	AgentHandle   string
	Status        Status
	ErrorMessage  string
	ContentPath   string
	Import        ImportTarget
	LastHeartbeat *time.Time
	AddedAt       time.Time
	UpdatedAt     time.Time
	ImportedAt    *time.Time
}

// IsTerminal reports whether the item has reached a final status.
func (i *Item) IsTerminal() bool {
	return i != nil && IsTerminal(i.Status)
}

// ImportTarget is the in-flight transfer plan persisted while an item is
// importing, so an interrupted import can be reconciled on restart.
type ImportTarget struct {
	Source      string
	Destination string
	Size        int64
	Quality     string
}

// Empty reports whether no target has been recorded.
func (t ImportTarget) Empty() bool {
	return t.Source == "" && t.Destination == ""
}

// DecisionApproved is the only decision the importer records.
const DecisionApproved = "approved"

// ImportRecord is an append-only ledger row describing a completed import.
type ImportRecord struct {
	ID              int64
	QueueItemID     int64
	LibraryItemID   int64
	SourcePath      string
	DestinationPath string
	Quality         string
	SizeBytes       int64
	Decision        string
	TransferMode    string
	ImportedAt      time.Time
}

// RootLocation captures the last probe of a library root.
type RootLocation struct {
	Path      string
	Reachable bool
	FreeBytes uint64
	CheckedAt time.Time
}

// NewItemParams describes a queue item to create after a successful enqueue.
type NewItemParams struct {
	LibraryItemID int64
	Title         string
	AgentName     string
	AgentHandle   string
}
