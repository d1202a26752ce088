package provider

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"vibesafe/internal/vserrors"
)

// OpenAICompatible talks to any OpenAI chat-completions-compatible
// endpoint (base URL is configurable so local and hosted models both
// work), grounded on services/llm.OpenAIClient's chat completion call.
type OpenAICompatible struct {
	client *openai.Client
	model  string
}

// NewOpenAICompatible constructs a client against baseURL (empty means the
// SDK's default, api.openai.com) using apiKey for auth.
func NewOpenAICompatible(apiKey, baseURL, model string) *OpenAICompatible {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICompatible{client: openai.NewClientWithConfig(cfg), model: model}
}

func (p *OpenAICompatible) Complete(ctx context.Context, req Request) (string, error) {
	completion := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You write Go implementations that satisfy every given example exactly."},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: float32(req.Params.Temperature),
		Seed:        &req.Params.Seed,
	}
	if req.Params.MaxTokens > 0 {
		completion.MaxCompletionTokens = req.Params.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, completion)
	if err != nil {
		return "", vserrors.NewProviderError(req.UnitID, classifyOpenAIError(err), err)
	}
	if len(resp.Choices) == 0 {
		return "", vserrors.NewProviderError(req.UnitID, vserrors.ProviderMalformed, fmt.Errorf("no choices returned"))
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(err error) vserrors.ProviderCategory {
	var apiErr *openai.APIError
	if ok := asAPIError(err, &apiErr); ok {
		switch apiErr.HTTPStatusCode {
		case 401, 403:
			return vserrors.ProviderAuth
		case 429:
			return vserrors.ProviderQuota
		case 500, 502, 503, 504:
			return vserrors.ProviderNetwork
		}
		return vserrors.ProviderProtocol
	}
	return vserrors.ProviderNetwork
}

func asAPIError(err error, target **openai.APIError) bool {
	apiErr, ok := err.(*openai.APIError)
	if !ok {
		return false
	}
	*target = apiErr
	return true
}
