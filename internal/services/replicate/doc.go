// Package replicate talks to the Replicate predictions API for image, video
// and lip-sync generation.
//
// A generation creates a prediction, polls it until it reaches a terminal
// state (succeeded, failed, canceled) or the configured timeout, then copies
// the first output URL into the local asset store so campaign outputs never
// point at Replicate's short-lived delivery URLs.
//
// Model identifiers are either "owner/name" (latest version through the
// models endpoint) or "owner/name:version" (pinned version). Lip-sync models
// accept the short names listed in LipSyncModels.
package replicate
