// Package preflight provides readiness checks for the external services and
// filesystem paths reelsmith depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs every failing check. A failed
//     provider check does not stop the daemon: users may still supply their
//     own keys per request.
//   - The CLI "reelsmith status" command renders the same results next to the
//     daemon status.
//
// Provider checks are skipped when no instance-wide key is configured.
package preflight
