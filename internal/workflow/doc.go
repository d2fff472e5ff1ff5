// Package workflow keeps the queue in step with the fetch agents.
//
// The Manager runs one poller per configured agent. Each poll asks the agent
// about the agent's active items, walks them along the queue state machine, and
// claims completed items for import. Imports run in their own goroutines and
// Stop waits for them. A poll that would overlap a running one for the same
// agent is skipped and counted, never queued.
//
// Agents with a completed_dir also get an fsnotify watcher that requests an
// early poll when the agent drops a finished payload there. Requests coalesce
// into a single pending wake-up.
//
// Reload swaps in a new agent set without touching running imports; each
// import reads its own settings snapshot when it starts.
package workflow
