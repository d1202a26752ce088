package provider

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"vibesafe/internal/vserrors"
)

// Gemini talks to Google's generative-language API, grounded on
// embedding.GenAIEngine's client construction (the teacher only ever uses
// genai for embeddings; here it drives chat-style completion instead).
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini constructs a Gemini provider bound to model.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("provider: gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("provider: gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (p *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	temp := float32(req.Params.Temperature)
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if req.Params.MaxTokens > 0 {
		maxTokens := int32(req.Params.MaxTokens)
		cfg.MaxOutputTokens = maxTokens
	}

	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return "", vserrors.NewProviderError(req.UnitID, vserrors.ProviderNetwork, err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", vserrors.NewProviderError(req.UnitID, vserrors.ProviderMalformed, fmt.Errorf("no candidates returned"))
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

// Close is a no-op that always returns nil; it releases nothing.
func (p *Gemini) Close() error {
	return nil
}
