package llm

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/careplan-cli/pkg/anthropic"
)

// AnthropicProvider issues completions through the Anthropic Messages API.
// The system prompt is sent as a cached block since it is identical across
// chunks.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider wraps an Anthropic client.
func NewAnthropicProvider(client anthropic.Client, model string) *AnthropicProvider {
	return &AnthropicProvider{client: client, model: model}
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Complete implements Provider.
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	temperature := req.Temperature

	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       model,
		MaxTokens:   int64(req.MaxTokens),
		System:      anthropic.BuildCachedSystemBlocks(req.System),
		Messages:    []anthropic.Message{{Role: "user", Content: req.User}},
		Temperature: &temperature,
	})
	if err != nil {
		return nil, newTransportError(p.Name(), anthropic.StatusCode(err), "", err)
	}

	if resp == nil || len(resp.Content) == 0 {
		return nil, eris.Wrap(ErrInvalidResponse, "anthropic: response has no content blocks")
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyGeneration
	}

	used := resp.Model
	if used == "" {
		used = model
	}
	return &Completion{
		Text:             text,
		Model:            used,
		InputTokens:      int(resp.Usage.InputTokens),
		OutputTokens:     int(resp.Usage.OutputTokens),
		CacheWriteTokens: int(resp.Usage.CacheCreationInputTokens),
		CacheReadTokens:  int(resp.Usage.CacheReadInputTokens),
	}, nil
}
