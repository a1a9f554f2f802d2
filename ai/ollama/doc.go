// Package ollama implements the "local" generation provider on top of
// langchaingo's Ollama client.
package ollama
