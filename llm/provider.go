// Package llm provides completion provider interfaces and implementations.
package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// Completion is the result of an asynchronous invocation.
type Completion struct {
	Text string
	Err  error
}

// Provider is the interface for completion providers. Retry and
// circuit breaking live with the caller; a provider makes exactly one
// attempt per call.
type Provider interface {
	// Invoke sends a prompt with an optional system instruction and
	// returns the completion text.
	Invoke(ctx context.Context, prompt, system string) (string, error)

	// InvokeAsync runs Invoke on its own goroutine and delivers the
	// result on the returned channel.
	InvokeAsync(ctx context.Context, prompt, system string) <-chan Completion

	// Embed returns an embedding vector for the text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Available reports whether the provider was constructed with
	// working credentials.
	Available() bool
}

// Config holds configuration for the provider factory.
type Config struct {
	Provider       string `toml:"provider"` // openai, anthropic, google, mock
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"` // OpenAI-compatible local endpoints
	MaxTokens      int    `toml:"max_tokens"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if c.Provider != "mock" {
		if c.Model == "" {
			return fmt.Errorf("model is required")
		}
		if c.APIKey == "" {
			return fmt.Errorf("api key is required")
		}
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	return nil
}

// New creates a provider from configuration, selected by name.
func New(cfg Config) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			EmbeddingModel: cfg.EmbeddingModel,
			MaxTokens:      cfg.MaxTokens,
		})
	case "anthropic":
		return NewAnthropicProvider(AnthropicConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		})
	case "google":
		return NewGoogleProvider(GoogleConfig{
			APIKey:         cfg.APIKey,
			Model:          cfg.Model,
			EmbeddingModel: cfg.EmbeddingModel,
			MaxTokens:      cfg.MaxTokens,
		})
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// invokeAsync is the shared InvokeAsync implementation.
func invokeAsync(p Provider, ctx context.Context, prompt, system string) <-chan Completion {
	out := make(chan Completion, 1)
	go func() {
		text, err := p.Invoke(ctx, prompt, system)
		out <- Completion{Text: text, Err: err}
		close(out)
	}()
	return out
}

// fallbackEmbeddingDim is the dimension of locally computed vectors.
const fallbackEmbeddingDim = 256

// fallbackEmbedding builds a deterministic local vector by hashing
// words into buckets. Used where the provider has no embedding API;
// good enough for similarity over small recommendation corpora.
func fallbackEmbedding(text string) []float32 {
	vec := make([]float32, fallbackEmbeddingDim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%fallbackEmbeddingDim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}
