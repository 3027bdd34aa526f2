package gemini

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/jxucoder/daybook/pkg/llm"
	"github.com/jxucoder/daybook/pkg/llm/llmtest"
	"github.com/jxucoder/daybook/pkg/model"
)

type stubModelsClient struct {
	responses []*genai.GenerateContentResponse
	err       error

	gotModel    string
	gotContents []*genai.Content
	gotConfig   *genai.GenerateContentConfig
}

func (s *stubModelsClient) GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	s.gotModel = model
	s.gotContents = contents
	s.gotConfig = cfg
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, resp := range s.responses {
			if !yield(resp, nil) {
				return
			}
		}
		if s.err != nil {
			yield(nil, s.err)
		}
	}
}

func textResponse(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: genai.RoleModel, Parts: parts}},
		},
	}
}

func TestBuildRequest(t *testing.T) {
	contents, cfg := buildRequest("be brief", model.Conversation{
		{Role: model.RoleUser, Content: "What's next?"},
		{Role: model.RoleSystem, Content: "today is Tuesday"},
		{Role: model.RoleAssistant, Content: "Team Meeting at 10:00."},
		{Role: model.RoleUser, Content: "And after?"},
	})

	want := []struct{ role, text string }{
		{role: genai.RoleUser, text: "What's next?"},
		{role: genai.RoleModel, text: "Team Meeting at 10:00."},
		{role: genai.RoleUser, text: "And after?"},
	}
	if len(contents) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(contents), len(want))
	}
	for i, c := range contents {
		if c.Role != want[i].role {
			t.Errorf("content %d role: got %q, want %q", i, c.Role, want[i].role)
		}
		if len(c.Parts) != 1 || c.Parts[0].Text != want[i].text {
			t.Errorf("content %d parts: got %+v, want %q", i, c.Parts, want[i].text)
		}
	}

	if cfg.SystemInstruction == nil || len(cfg.SystemInstruction.Parts) != 1 {
		t.Fatalf("system instruction = %+v, want one part", cfg.SystemInstruction)
	}
	if got := cfg.SystemInstruction.Parts[0].Text; got != "be brief\n\ntoday is Tuesday" {
		t.Errorf("system instruction = %q", got)
	}
}

func TestBuildRequest_NoSystem(t *testing.T) {
	_, cfg := buildRequest("", model.Conversation{{Role: model.RoleUser, Content: "hi"}})
	if cfg.SystemInstruction != nil {
		t.Errorf("system instruction = %+v, want nil", cfg.SystemInstruction)
	}
}

func TestVisibleText(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{name: "nil response", resp: nil, want: ""},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}, want: ""},
		{name: "nil content", resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}, want: ""},
		{name: "joins parts", resp: textResponse(&genai.Part{Text: "You"}, &genai.Part{Text: " have"}), want: "You have"},
		{name: "skips thoughts", resp: textResponse(&genai.Part{Text: "planning...", Thought: true}, &genai.Part{Text: "Done."}), want: "Done."},
		{name: "skips nil parts", resp: textResponse(nil, &genai.Part{Text: "ok"}), want: "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := visibleText(tt.resp); got != tt.want {
				t.Errorf("visibleText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStream(t *testing.T) {
	stub := &stubModelsClient{responses: []*genai.GenerateContentResponse{
		textResponse(&genai.Part{Text: "thinking", Thought: true}),
		textResponse(&genai.Part{Text: "You"}),
		textResponse(&genai.Part{Text: " have 2 events..."}),
	}}
	p := &Provider{models: stub, model: DefaultModel}

	ch, err := p.Stream(context.Background(), llm.Request{
		System:   "be brief",
		Messages: model.Conversation{{Role: model.RoleUser, Content: "What's on my calendar today?"}},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	text, err := llmtest.Collect(ch)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if text != "You have 2 events..." {
		t.Errorf("text = %q, want %q", text, "You have 2 events...")
	}
	if stub.gotModel != DefaultModel {
		t.Errorf("model = %q, want %q", stub.gotModel, DefaultModel)
	}
	if len(stub.gotContents) != 1 || stub.gotContents[0].Parts[0].Text != "What's on my calendar today?" {
		t.Errorf("contents = %+v", stub.gotContents)
	}
	if stub.gotConfig == nil || stub.gotConfig.SystemInstruction == nil {
		t.Error("expected the system instruction in the request config")
	}
}

func TestStream_RequestModelOverrides(t *testing.T) {
	stub := &stubModelsClient{}
	p := &Provider{models: stub, model: DefaultModel}

	ch, err := p.Stream(context.Background(), llm.Request{
		Messages: model.Conversation{{Role: model.RoleUser, Content: "hi"}},
		Model:    "gemini-2.5-pro",
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	llmtest.Collect(ch)
	if stub.gotModel != "gemini-2.5-pro" {
		t.Errorf("model = %q, want gemini-2.5-pro", stub.gotModel)
	}
}

func TestStream_ErrorEndsStream(t *testing.T) {
	stub := &stubModelsClient{
		responses: []*genai.GenerateContentResponse{textResponse(&genai.Part{Text: "You"})},
		err:       errors.New("quota exceeded"),
	}
	p := &Provider{models: stub, model: DefaultModel}

	ch, err := p.Stream(context.Background(), llm.Request{
		Messages: model.Conversation{{Role: model.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	text, err := llmtest.Collect(ch)
	if text != "You" {
		t.Errorf("text = %q, want %q", text, "You")
	}
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("err = %v, want quota exceeded", err)
	}
}

func TestStream_RejectsSystemOnlyConversation(t *testing.T) {
	p := &Provider{models: &stubModelsClient{}, model: DefaultModel}
	_, err := p.Stream(context.Background(), llm.Request{
		Messages: model.Conversation{{Role: model.RoleSystem, Content: "today is Tuesday"}},
	})
	if err == nil {
		t.Fatal("expected error for a conversation with no user or assistant turn")
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(context.Background(), "", ""); err == nil {
		t.Fatal("expected error when the API key is missing")
	}
}
