// Package ollama implements llm.Provider against a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/jxucoder/daybook/pkg/llm"
	"github.com/jxucoder/daybook/pkg/model"
)

const (
	DefaultHost  = "http://localhost:11434"
	DefaultModel = "llama3.1:latest"
)

// Provider implements llm.Provider using the Ollama API client.
type Provider struct {
	client *api.Client
	model  string
}

// New creates a provider for the Ollama server at host.
func New(host, model string) (*Provider, error) {
	if host == "" {
		host = DefaultHost
	}
	if model == "" {
		model = DefaultModel
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}
	return &Provider{
		client: api.NewClient(u, http.DefaultClient),
		model:  model,
	}, nil
}

// Stream implements llm.Provider.
func (p *Provider) Stream(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = p.model
	}
	stream := true
	chatReq := &api.ChatRequest{
		Model:    modelID,
		Messages: toOllamaMessages(req.System, req.Messages),
		Stream:   &stream,
	}

	ch := make(chan llm.Chunk, 32)
	go func() {
		defer close(ch)
		err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
			if resp.Message.Content == "" {
				return nil
			}
			if !llm.Send(ctx, ch, llm.Chunk{Text: resp.Message.Content}) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			llm.Send(ctx, ch, llm.Chunk{Err: fmt.Errorf("ollama chat: %w", err)})
		}
	}()
	return ch, nil
}

func toOllamaMessages(system string, conv model.Conversation) []api.Message {
	out := make([]api.Message, 0, len(conv)+1)
	if system != "" {
		out = append(out, api.Message{Role: string(model.RoleSystem), Content: system})
	}
	for _, m := range conv {
		out = append(out, api.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}
