// Package queue persists library items, acquisitions and the import ledger in
// SQLite.
//
// Every status change is a compare-and-set on the current status so pollers
// and importers never overwrite each other. The import ledger is append-only;
// triggers reject updates and deletes. Schema changes ship as numbered
// migrations under migrations/ and are applied by Open.
package queue
