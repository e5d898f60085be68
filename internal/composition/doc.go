// Package composition renders text overlays onto generated images and burns
// styled captions into generated videos using ffmpeg.
//
// Overlay placement follows a nine-point gravity grid (north_west through
// south_east) derived from the template's overlay position. Caption burn-in
// is best effort: ComposeVideoWithCaptions returns nil instead of an error so
// the captions step can still succeed with an SRT-only result.
package composition
