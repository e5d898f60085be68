// Package api defines the wire-format types of the HTTP API, the campaign
// service the handlers delegate to, and the HTTP client used by the CLI.
//
// # Key Types
//
// CampaignService: create, update (draft only), delete (with stored
// assets), duplicate, list and get campaigns scoped to one user.
//
// DaemonStatus: daemon running state, active runs, campaign counts per
// status, key sources, asset storage health and dependencies.
//
// Client: typed calls against a running daemon, authenticated with the
// configured bearer token and the X-User-ID header.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Domain types from internal/campaign already
// carry those tags and are embedded directly instead of being copied into
// parallel structs. Errors travel as {"error": message, "kind": marker} so the
// client can rebuild a services marker error from the response.
package api
