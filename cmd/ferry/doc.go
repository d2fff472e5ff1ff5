// Command ferry is the CLI and daemon entry point for the import pipeline.
//
// "ferry run" holds the daemon lock and runs the agent pollers in the
// foreground. The remaining commands open the queue database directly, which
// is safe alongside a running daemon because the store uses WAL mode and
// compare-and-set transitions.
package main
