package ai

import "context"

// Runtime is a minimal interface implemented by AI backends/runtimes
// such as OpenRouter and local runtimes (e.g., Ollama).
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used across the CLI for selection.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

// StreamRuntime is an optional extension that supports streaming output.
// Implementors should invoke onDelta with each partial content chunk.
type StreamRuntime interface {
	GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(string)) error
}

// NormalizeProvider maps user-facing aliases to a provider identifier.
func NormalizeProvider(name string) (string, bool) {
	switch name {
	case "", "openrouter", "OpenRouter", "OPENROUTER":
		return ProviderOpenRouter, true
	case "ollama", "Ollama", "local", "LOCAL":
		return ProviderOllama, true
	}
	return "", false
}
