// Package rootfolder measures the configured library roots and picks the one
// an import should land on.
//
// Roots that are not writable directories are dropped. The remaining roots are
// ordered by free space (stable on configuration order) and the first with room
// for the payload plus the configured buffer wins. When none has room the root
// with the most free space is returned with Fallback set so callers can warn.
// Every probe is cached in the root_locations table for the CLI.
package rootfolder
