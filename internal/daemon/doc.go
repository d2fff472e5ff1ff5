// Package daemon coordinates the long-running ferry process.
//
// It wires configuration, queue storage, the importer, and the workflow
// manager into a single lifecycle with flock-based locking to prevent
// multiple instances against one data directory. On start the daemon
// reconciles imports interrupted by a previous crash, logs preflight
// results, and then launches the agent pollers.
//
// Keep orchestration logic here: individual workflow steps should live in
// their respective packages while the daemon focuses on startup, shutdown,
// and high level coordination.
package daemon
