// Package ai defines the text-generation provider interface and the
// service layer the document agents delegate analysis to.
package ai

import "context"

const (
	defaultMaxTokens   = 1000
	defaultTemperature = 0.7
)

// Request is a single text-generation request.
type Request struct {
	Prompt       string  `json:"prompt"`
	Model        string  `json:"model,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
}

func (r *Request) applyDefaults() {
	if r.MaxTokens <= 0 {
		r.MaxTokens = defaultMaxTokens
	}
	if r.Temperature <= 0 {
		r.Temperature = defaultTemperature
	}
}

// Provider is a text-generation backend.
type Provider interface {
	// Name returns the provider identifier (e.g. "mock", "openai", "ollama").
	Name() string

	// Generate produces a completion for the request.
	Generate(ctx context.Context, req Request) (string, error)
}
