// Package captions turns narration text into timed caption segments and
// renders them as SRT or styled ASS subtitle tracks.
//
// Segmentation supports three modes: timed chunks of a few words spread evenly
// across the estimated narration length, sentence segments weighted by word
// count, and one-word segments for karaoke style playback. Styles are resolved
// from a named preset merged with per-campaign overrides.
package captions
