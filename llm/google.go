package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/Timwood0x10/StyleAgent/errors"
)

// GoogleProvider implements Provider using the official Gemini SDK.
type GoogleProvider struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	embedder  *genai.EmbeddingModel
	available bool
}

// GoogleConfig holds configuration for the Google provider.
type GoogleConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	MaxTokens      int
}

// NewGoogleProvider creates a new Google Gemini provider using the official SDK.
func NewGoogleProvider(cfg GoogleConfig) (*GoogleProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for google")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required for google")
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-004"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	maxTokens := int32(cfg.MaxTokens)
	model.MaxOutputTokens = &maxTokens

	return &GoogleProvider{
		client:    client,
		model:     model,
		embedder:  client.EmbeddingModel(cfg.EmbeddingModel),
		available: true,
	}, nil
}

// Close closes the underlying client.
func (p *GoogleProvider) Close() error {
	return p.client.Close()
}

// Invoke implements the Provider interface.
func (p *GoogleProvider) Invoke(ctx context.Context, prompt, system string) (string, error) {
	if system != "" {
		p.model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}

	resp, err := p.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", errors.Wrap(errors.KindModelFailure, "google completion failed", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New(errors.KindModelFailure, "google returned no candidates")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	return text, nil
}

// InvokeAsync implements the Provider interface.
func (p *GoogleProvider) InvokeAsync(ctx context.Context, prompt, system string) <-chan Completion {
	return invokeAsync(p, ctx, prompt, system)
}

// Embed implements the Provider interface.
func (p *GoogleProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.embedder.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, errors.Wrap(errors.KindModelFailure, "google embedding failed", err)
	}
	if resp.Embedding == nil {
		return nil, errors.New(errors.KindModelFailure, "google returned no embedding")
	}
	return resp.Embedding.Values, nil
}

// Available implements the Provider interface.
func (p *GoogleProvider) Available() bool {
	return p.available
}
