// Package anthropic implements llm.Provider using the Anthropic Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jxucoder/daybook/pkg/llm"
	"github.com/jxucoder/daybook/pkg/model"
)

// DefaultModel is used when neither the provider nor the request names one.
const DefaultModel = "claude-sonnet-4-5-20250929"

const maxTokens = 4096

// Provider implements llm.Provider using the Anthropic Go SDK.
type Provider struct {
	client anthropic.Client
	model  string
}

// New creates a provider for the Anthropic API.
// Model defaults to DefaultModel if empty.
func New(apiKey, model string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	return &Provider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

// Stream implements llm.Provider.
func (p *Provider) Stream(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = p.model
	}
	system, messages := toAnthropicMessages(req.System, req.Messages)
	if len(messages) == 0 {
		return nil, fmt.Errorf("anthropic: at least one user or assistant message is required")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelID),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	ch := make(chan llm.Chunk, 32)
	go func() {
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			text, ok := delta.Delta.AsAny().(anthropic.TextDelta)
			if !ok || text.Text == "" {
				continue
			}
			if !llm.Send(ctx, ch, llm.Chunk{Text: text.Text}) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			llm.Send(ctx, ch, llm.Chunk{Err: fmt.Errorf("anthropic stream: %w", err)})
		}
	}()
	return ch, nil
}

// toAnthropicMessages moves system text into system blocks, since the
// Messages API has no system role.
func toAnthropicMessages(system string, conv model.Conversation) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	sysParts, rest := llm.SplitSystem(system, conv)

	var blocks []anthropic.TextBlockParam
	if len(sysParts) > 0 {
		blocks = append(blocks, anthropic.TextBlockParam{Text: strings.Join(sysParts, "\n\n")})
	}

	messages := make([]anthropic.MessageParam, 0, len(rest))
	for _, m := range rest {
		if m.Role == model.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
	}
	return blocks, messages
}
