package analysis

import (
	"context"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

// anthropicMaxTokens bounds the completion size for analysis prompts.
const anthropicMaxTokens = 4096

// anthropicKnownModels is the fallback rotation pool for Anthropic. The SDK
// exposes no models-listing endpoint, so a fixed set stands in; every entry
// supports text generation.
var anthropicKnownModels = []string{
	"claude-3-5-haiku-20241022",
	"claude-3-7-sonnet-20250219",
	"claude-sonnet-4-20250514",
}

// AnthropicProvider implements Provider using the Anthropic Claude API.
type AnthropicProvider struct {
	client *anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic Claude provider.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{client: anthropic.NewClient(apiKey)}
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// GenerateText sends a messages request to the Anthropic Claude API.
func (p *AnthropicProvider) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	resp, err := p.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	return resp.GetFirstContentText(), nil
}

// ListModels returns the fixed known-models set.
func (p *AnthropicProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	models := make([]ModelInfo, 0, len(anthropicKnownModels))
	for _, name := range anthropicKnownModels {
		models = append(models, ModelInfo{Name: name, SupportsGeneration: true})
	}
	return models, nil
}
