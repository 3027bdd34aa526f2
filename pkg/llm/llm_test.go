package llm_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/jxucoder/daybook/pkg/llm"
	"github.com/jxucoder/daybook/pkg/llm/llmtest"
	"github.com/jxucoder/daybook/pkg/model"
)

func TestSplitSystem(t *testing.T) {
	tests := []struct {
		name     string
		system   string
		messages model.Conversation
		wantSys  []string
		wantRest model.Conversation
	}{
		{
			name:     "instruction only",
			system:   "be brief",
			messages: model.Conversation{{Role: model.RoleUser, Content: "hi"}},
			wantSys:  []string{"be brief"},
			wantRest: model.Conversation{{Role: model.RoleUser, Content: "hi"}},
		},
		{
			name:   "system messages follow the instruction in order",
			system: "be brief",
			messages: model.Conversation{
				{Role: model.RoleSystem, Content: "today is Tuesday"},
				{Role: model.RoleUser, Content: "what's next?"},
				{Role: model.RoleSystem, Content: "user is in Berlin"},
				{Role: model.RoleAssistant, Content: "Team Meeting"},
			},
			wantSys: []string{"be brief", "today is Tuesday", "user is in Berlin"},
			wantRest: model.Conversation{
				{Role: model.RoleUser, Content: "what's next?"},
				{Role: model.RoleAssistant, Content: "Team Meeting"},
			},
		},
		{
			name:     "no instruction",
			messages: model.Conversation{{Role: model.RoleUser, Content: "hi"}},
			wantRest: model.Conversation{{Role: model.RoleUser, Content: "hi"}},
		},
		{
			name:     "empty conversation",
			system:   "be brief",
			wantSys:  []string{"be brief"},
			wantRest: model.Conversation{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys, rest := llm.SplitSystem(tt.system, tt.messages)
			if !reflect.DeepEqual(sys, tt.wantSys) {
				t.Errorf("system = %q, want %q", sys, tt.wantSys)
			}
			if !reflect.DeepEqual(rest, tt.wantRest) {
				t.Errorf("rest = %+v, want %+v", rest, tt.wantRest)
			}
		})
	}
}

func TestCollect(t *testing.T) {
	ch := make(chan llm.Chunk, 4)
	ch <- llm.Chunk{Text: "You"}
	ch <- llm.Chunk{Text: " have"}
	ch <- llm.Chunk{Err: errors.New("stream reset")}
	close(ch)

	text, err := llmtest.Collect(ch)
	if text != "You have" {
		t.Errorf("text = %q, want %q", text, "You have")
	}
	if err == nil || err.Error() != "stream reset" {
		t.Errorf("err = %v, want stream reset", err)
	}
}

func TestSendStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := make(chan llm.Chunk)
	if llm.Send(ctx, ch, llm.Chunk{Text: "late"}) {
		t.Error("Send delivered on a cancelled context with no reader")
	}
}

func TestCompleteFunc(t *testing.T) {
	var got llm.Request
	p := llm.CompleteFunc(func(ctx context.Context, system string, messages model.Conversation, modelID string) (<-chan llm.Chunk, error) {
		got = llm.Request{System: system, Messages: messages, Model: modelID}
		ch := make(chan llm.Chunk, 1)
		ch <- llm.Chunk{Text: "ok"}
		close(ch)
		return ch, nil
	})

	req := llm.Request{
		System:   "be brief",
		Messages: model.Conversation{{Role: model.RoleUser, Content: "hi"}},
		Model:    "gpt-4o",
	}
	ch, err := p.Stream(context.Background(), req)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	text, err := llmtest.Collect(ch)
	if err != nil || text != "ok" {
		t.Errorf("Collect = %q, %v; want ok, nil", text, err)
	}
	if !reflect.DeepEqual(got, req) {
		t.Errorf("request = %+v, want %+v", got, req)
	}
}
