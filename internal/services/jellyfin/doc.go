// Package jellyfin triggers a Jellyfin library scan after a successful import.
//
// The configured service is a no-op unless jellyfin.enabled is set with both a
// URL and an API key.
package jellyfin
