// Package openai implements llm.Provider using the OpenAI Chat Completions API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jxucoder/daybook/pkg/llm"
	"github.com/jxucoder/daybook/pkg/model"
)

// DefaultModel is used when neither the provider nor the request names one.
const DefaultModel = "gpt-4o"

// Provider implements llm.Provider using the official OpenAI Go SDK.
type Provider struct {
	client openai.Client
	model  string
}

// New creates a provider for the OpenAI API.
// baseURL may be empty to use the public endpoint.
func New(apiKey, baseURL, model string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Provider{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

// Stream implements llm.Provider.
func (p *Provider) Stream(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = p.model
	}
	params := openai.ChatCompletionNewParams{
		Messages: toOpenAIMessages(req.System, req.Messages),
		Model:    openai.ChatModel(modelID),
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	ch := make(chan llm.Chunk, 32)
	go func() {
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			if !llm.Send(ctx, ch, llm.Chunk{Text: chunk.Choices[0].Delta.Content}) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			llm.Send(ctx, ch, llm.Chunk{Err: fmt.Errorf("openai stream: %w", err)})
		}
	}()
	return ch, nil
}

// toOpenAIMessages prepends the system instruction and maps roles.
func toOpenAIMessages(system string, messages model.Conversation) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}
	for _, m := range messages {
		switch m.Role {
		case model.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case model.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
