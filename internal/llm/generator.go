// Package llm provides text generation for agents that need language
// understanding, backed by the Anthropic API or AWS Bedrock.
package llm

import "context"

// Generator produces a text completion for a prompt. Implementations
// must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	return f(ctx, prompt, maxTokens, temperature)
}
