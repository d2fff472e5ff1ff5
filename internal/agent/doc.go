// Package agent talks to fetch agents (download clients) over their native
// wire protocols and reports progress in queue terms.
//
// Each backend owns a translation table from vendor states to queue.Status.
// Calls never return transport errors: failures are logged as
// services.ErrAgentUnreachable and the zero value is returned, so a flaky
// agent only delays the next poll. Sessions are cached per client and
// re-established once when the agent rejects a stale token.
package agent
