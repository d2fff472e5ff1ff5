// Package logs tails the daemon log file for `ferry logs`.
//
// Negative offsets mean "the last N lines", and follow mode waits for the
// file to grow, waking on fsnotify write events with a slow ticker as a
// fallback for filesystems that do not deliver them. A line filter narrows
// output to one queue item in either the console or JSON log format.
package logs
