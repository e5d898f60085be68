// Package services defines shared utilities consumed by the campaign pipeline,
// the HTTP API and the external provider clients.
//
// Key responsibilities:
//   - Context helpers that stamp campaign IDs, user IDs, step names, batch IDs
//     and correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (Details) and mapped onto HTTP responses (HTTPStatus).
//
// Provider clients live in subpackages (replicate, elevenlabs, llm, gemini).
package services
