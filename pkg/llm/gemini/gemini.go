// Package gemini implements llm.Provider using the Google Gen AI SDK.
package gemini

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"

	"github.com/jxucoder/daybook/pkg/llm"
	"github.com/jxucoder/daybook/pkg/model"
)

// DefaultModel is used when neither the provider nor the request names one.
const DefaultModel = "gemini-2.5-flash"

// modelsClient is the slice of *genai.Models the provider needs.
type modelsClient interface {
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// Provider implements llm.Provider against the Gemini API.
type Provider struct {
	models modelsClient
	model  string
}

// New creates a Gemini provider. Model defaults to DefaultModel if empty.
func New(ctx context.Context, apiKey, model string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Provider{models: client.Models, model: model}, nil
}

// Stream implements llm.Provider.
func (p *Provider) Stream(ctx context.Context, req llm.Request) (<-chan llm.Chunk, error) {
	modelID := req.Model
	if modelID == "" {
		modelID = p.model
	}
	contents, cfg := buildRequest(req.System, req.Messages)
	if len(contents) == 0 {
		return nil, fmt.Errorf("gemini: at least one user or assistant message is required")
	}

	seq := p.models.GenerateContentStream(ctx, modelID, contents, cfg)
	ch := make(chan llm.Chunk, 32)
	go func() {
		defer close(ch)
		for resp, err := range seq {
			if err != nil {
				llm.Send(ctx, ch, llm.Chunk{Err: fmt.Errorf("gemini stream: %w", err)})
				return
			}
			text := visibleText(resp)
			if text == "" {
				continue
			}
			if !llm.Send(ctx, ch, llm.Chunk{Text: text}) {
				return
			}
		}
	}()
	return ch, nil
}

func buildRequest(system string, conv model.Conversation) ([]*genai.Content, *genai.GenerateContentConfig) {
	sysParts, rest := llm.SplitSystem(system, conv)

	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		role := genai.Role(genai.RoleUser)
		if m.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{}
	if len(sysParts) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(sysParts, "\n\n"), genai.RoleUser)
	}
	return contents, cfg
}

func visibleText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}
