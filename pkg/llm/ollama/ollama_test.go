package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ollama/ollama/api"

	"github.com/jxucoder/daybook/pkg/llm"
	"github.com/jxucoder/daybook/pkg/llm/llmtest"
	"github.com/jxucoder/daybook/pkg/model"
)

func TestToOllamaMessages(t *testing.T) {
	tests := []struct {
		name     string
		system   string
		input    model.Conversation
		expected []api.Message
	}{
		{
			name:     "empty conversation keeps the instruction",
			system:   "be brief",
			input:    model.Conversation{},
			expected: []api.Message{{Role: "system", Content: "be brief"}},
		},
		{
			name:   "instruction first then messages in order",
			system: "be brief",
			input: model.Conversation{
				{Role: model.RoleUser, Content: "What's on my calendar today?"},
				{Role: model.RoleAssistant, Content: "You have 2 events."},
				{Role: model.RoleSystem, Content: "today is Tuesday"},
				{Role: model.RoleUser, Content: "Move the first one."},
			},
			expected: []api.Message{
				{Role: "system", Content: "be brief"},
				{Role: "user", Content: "What's on my calendar today?"},
				{Role: "assistant", Content: "You have 2 events."},
				{Role: "system", Content: "today is Tuesday"},
				{Role: "user", Content: "Move the first one."},
			},
		},
		{
			name:     "no instruction",
			input:    model.Conversation{{Role: model.RoleUser, Content: "hi"}},
			expected: []api.Message{{Role: "user", Content: "hi"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := toOllamaMessages(tt.system, tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("length mismatch: got %d, want %d", len(result), len(tt.expected))
			}
			for i, msg := range result {
				if msg.Role != tt.expected[i].Role {
					t.Errorf("message %d role: got %q, want %q", i, msg.Role, tt.expected[i].Role)
				}
				if msg.Content != tt.expected[i].Content {
					t.Errorf("message %d content: got %q, want %q", i, msg.Content, tt.expected[i].Content)
				}
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	p, err := New("", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != DefaultModel {
		t.Errorf("model = %q, want %q", p.model, DefaultModel)
	}
	if _, err := New("http://[::1", ""); err == nil {
		t.Error("expected error for an invalid host")
	}
}

func TestStream(t *testing.T) {
	requests := make(chan api.ChatRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var req api.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		requests <- req

		w.Header().Set("Content-Type", "application/x-ndjson")
		enc := json.NewEncoder(w)
		for _, frag := range []string{"You", " have", " 2", " events..."} {
			enc.Encode(api.ChatResponse{Model: req.Model, Message: api.Message{Role: "assistant", Content: frag}})
		}
		enc.Encode(api.ChatResponse{Model: req.Model, Message: api.Message{Role: "assistant"}, Done: true})
	}))
	defer srv.Close()

	p, err := New(srv.URL, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
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

	req := <-requests
	if req.Model != DefaultModel {
		t.Errorf("model = %q, want %q", req.Model, DefaultModel)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "What's on my calendar today?" {
		t.Errorf("messages = %+v", req.Messages)
	}
}

func TestStream_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model \"llama3.1:latest\" not found"}`))
	}))
	defer srv.Close()

	p, err := New(srv.URL, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ch, err := p.Stream(context.Background(), llm.Request{
		Messages: model.Conversation{{Role: model.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	text, err := llmtest.Collect(ch)
	if text != "" {
		t.Errorf("text = %q, want empty", text)
	}
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v, want a not found error", err)
	}
}
