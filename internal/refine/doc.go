// Package refine rewrites short user prompts into detailed generation
// prompts with an LLM. Google requests go through Gemini and OpenRouter
// requests through the chat-completions client; credentials come from the
// requesting user's stored keys with the configured keys as fallback.
package refine
