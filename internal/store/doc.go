// Package store persists campaigns, personas, templates, API keys and batches
// in SQLite and exposes the repository operations the pipeline relies on.
//
// The Store manages the database connection, schema initialization, busy
// retries and the campaign run lifecycle (BeginRun, AppendLog, FinishRun). Each
// pipeline step writes its outputs through UpdateCampaign as soon as it
// succeeds, so partial progress survives a crash; FailInterrupted sweeps runs
// that never finished.
//
// Schema changes bump the version in schema.go; additive indexes live in
// migrations/ and are applied once per database.
package store
