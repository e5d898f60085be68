// Package llm provides an OpenRouter chat client used by the prompt refiner.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send system/user prompts, receive the plain-text reply.
// Client.CompleteJSON: send system/user prompts, receive a JSON response.
// Client.HealthCheck: verify API key and model availability.
//
// # Configuration
//
// Requires api_key, model, and optionally base_url, referer, title, timeout.
//
// # Retry Behaviour
//
// The client retries on HTTP 408/429/5xx errors, network timeouts and empty
// completions with exponential backoff (base 1s, max 10s, up to 5 attempts by
// default). Context cancellation aborts retries immediately.
package llm
