// Package pipeline executes campaigns.
//
// An Orchestrator turns a campaign, its persona and its template into
// generated assets by running the requested steps strictly in canonical order
// (image, video, audio, lip-sync, compose, captions). Every step reloads the
// campaign before it starts so it observes the outputs earlier steps have
// already committed, and each step persists its own outputs as soon as it
// succeeds. A failing step is recorded in the execution log and never aborts
// the remaining steps.
//
// Prepare performs the checks that are fatal to a run (ownership, template,
// persona, generation key) and flips the campaign to running. RunSteps does
// the work and computes the final status. Runner layers a per-campaign guard
// and background execution on top for the daemon.
package pipeline
