// Package campaign defines the domain model shared by the execution pipeline:
// campaigns, personas, templates, execution log entries and the canonical
// step order.
//
// Campaign status moves draft (or queued, for batch members) to running and
// then to completed or failed. Only draft campaigns may be edited. Steps
// always execute in CanonicalSteps order because later steps consume the
// outputs of earlier ones; OrderSteps normalizes any caller supplied subset.
package campaign
