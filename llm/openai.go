package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/Timwood0x10/StyleAgent/errors"
)

// OpenAIProvider implements Provider using the official OpenAI SDK.
// With BaseURL set it also serves OpenAI-compatible local endpoints.
type OpenAIProvider struct {
	client         *openai.Client
	model          string
	embeddingModel string
	maxTokens      int
	available      bool
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string // Optional custom endpoint
	Model          string
	EmbeddingModel string
	MaxTokens      int
}

// NewOpenAIProvider creates a new OpenAI provider using the official SDK.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for openai")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required for openai")
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := openai.NewClient(opts...)

	return &OpenAIProvider{
		client:         &client,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		maxTokens:      cfg.MaxTokens,
		available:      true,
	}, nil
}

// Invoke implements the Provider interface.
func (p *OpenAIProvider) Invoke(ctx context.Context, prompt, system string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     shared.ChatModel(p.model),
		Messages:  messages,
		MaxTokens: openai.Int(int64(p.maxTokens)),
	})
	if err != nil {
		return "", errors.Wrap(errors.KindModelFailure, "openai completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(errors.KindModelFailure, "openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// InvokeAsync implements the Provider interface.
func (p *OpenAIProvider) InvokeAsync(ctx context.Context, prompt, system string) <-chan Completion {
	return invokeAsync(p, ctx, prompt, system)
}

// Embed implements the Provider interface.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(p.embeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindModelFailure, "openai embedding failed", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New(errors.KindModelFailure, "openai returned no embedding")
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Available implements the Provider interface.
func (p *OpenAIProvider) Available() bool {
	return p.available
}
