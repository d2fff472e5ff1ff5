// Package services defines shared utilities consumed by the import pipeline and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp queue item IDs, agent names, stages, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so every failure carries
//     one classification the import run can act on.
//
// Use these helpers when wiring new pipeline code so error handling and
// observability stay uniform.
package services
