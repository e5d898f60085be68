// Package main hosts the reelsmith CLI entrypoint and command graph.
//
// The Cobra command tree translates terminal invocations into HTTP calls
// against the daemon API: campaign authoring and execution, persona and
// template browsing, provider keys, batches and prompt refinement. Daemon
// lifecycle commands (start, stop, restart, status, daemon) live here too,
// along with configuration scaffolding.
//
// Every read command renders a table by default and the raw API payload with
// --json. Keep the heavy lifting in internal packages and surface it here.
package main
