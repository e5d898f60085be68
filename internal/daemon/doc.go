// Package daemon coordinates the long-running reelsmith process.
//
// It wires configuration, the SQLite store, asset storage, the campaign
// runner, the batch service, the prompt refiner and the template catalog
// watcher into a single lifecycle with flock-based locking to prevent
// multiple instances. On start it fails campaigns a previous process left in
// running, installs the seed templates and imports the templates directory.
// The HTTP API served here is the only entry point for clients.
//
// Keep orchestration logic here: pipeline steps live in internal/pipeline
// and request validation in the services the handlers delegate to. The
// daemon focuses on startup, shutdown and high level coordination.
package daemon
