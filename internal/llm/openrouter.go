package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/careplan-cli/pkg/openrouter"
)

// OpenRouterProvider issues chat completions through OpenRouter.
type OpenRouterProvider struct {
	client openrouter.Client
	model  string
}

// NewOpenRouterProvider wraps an OpenRouter client. model is used when a
// request does not name one.
func NewOpenRouterProvider(client openrouter.Client, model string) *OpenRouterProvider {
	return &OpenRouterProvider{client: client, model: model}
}

// Name implements Provider.
func (p *OpenRouterProvider) Name() string { return "openrouter" }

// Complete implements Provider.
func (p *OpenRouterProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	temperature := req.Temperature
	maxTokens := req.MaxTokens

	resp, err := p.client.ChatCompletion(ctx, openrouter.ChatCompletionRequest{
		Model: model,
		Messages: []openrouter.Message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		if errors.Is(err, openrouter.ErrMalformedResponse) {
			return nil, eris.Wrap(ErrInvalidResponse, err.Error())
		}
		var se *openrouter.StatusError
		if errors.As(err, &se) {
			return nil, newTransportError(p.Name(), se.StatusCode, se.Body, err)
		}
		return nil, newTransportError(p.Name(), 0, "", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return nil, eris.Wrap(ErrInvalidResponse, "openrouter: response has no choices[0].message")
	}

	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyGeneration
	}

	used := resp.Model
	if used == "" {
		used = model
	}
	return &Completion{
		Text:         text,
		Model:        used,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
