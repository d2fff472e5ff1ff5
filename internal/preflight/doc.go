// Package preflight provides readiness checks for the fetch agents, library
// roots, and media server that ferry depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll once at start. Failures are logged as warnings
//     and never block startup; agents may come up later.
//   - The CLI "ferry agents test" command uses CheckAgent directly to print a
//     status line per agent.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
