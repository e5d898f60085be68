// Package catalog serves personas and templates to the pipeline and the API.
//
// System templates ship embedded as YAML and are installed idempotently by
// slug. Additional templates and personas can be imported from a directory of
// YAML files; Watcher keeps that directory in sync while the daemon runs.
package catalog
