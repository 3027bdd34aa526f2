package eventbus

import (
	"testing"
	"time"

	"github.com/jxucoder/daybook/pkg/model"
)

func TestSubscribePublishUnsubscribe(t *testing.T) {
	bus := NewInMemoryBus()
	ch := bus.Subscribe("board")

	ev := &model.Event{Topic: "board", Type: "task.added", Data: "ok"}
	bus.Publish("board", ev)

	select {
	case got := <-ch:
		if got.Data != "ok" {
			t.Fatalf("unexpected event data: %s", got.Data)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("did not receive event")
	}

	bus.Unsubscribe("board", ch)
}

func TestDoesNotBlockOnSlowSubscriber(t *testing.T) {
	bus := NewInMemoryBus()
	ch := bus.Subscribe("burst")

	// Fill channel to capacity (64) without reading.
	for i := 0; i < 64; i++ {
		bus.Publish("burst", &model.Event{Topic: "burst", Type: "reminder", Data: "x"})
	}

	done := make(chan struct{})
	go func() {
		// This publish should be dropped and return immediately.
		bus.Publish("burst", &model.Event{Topic: "burst", Type: "reminder", Data: "overflow"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("publish blocked on full channel")
	}

	bus.Unsubscribe("burst", ch)
}

func TestMultipleSubscribers(t *testing.T) {
	bus := NewInMemoryBus()
	ch1 := bus.Subscribe("shared")
	ch2 := bus.Subscribe("shared")

	ev := &model.Event{Topic: "shared", Type: "task.added", Data: "hello"}
	bus.Publish("shared", ev)

	for _, ch := range []chan *model.Event{ch1, ch2} {
		select {
		case got := <-ch:
			if got.Data != "hello" {
				t.Fatalf("unexpected data: %s", got.Data)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatal("subscriber did not receive event")
		}
	}

	bus.Unsubscribe("shared", ch1)
	bus.Unsubscribe("shared", ch2)
}

func TestPublishToOtherTopic(t *testing.T) {
	bus := NewInMemoryBus()
	ch := bus.Subscribe("board")

	bus.Publish("reminders", &model.Event{Topic: "reminders", Type: "task.added", Data: "x"})

	select {
	case <-ch:
		t.Fatal("should not receive event for a different topic")
	case <-time.After(100 * time.Millisecond):
		// expected
	}

	bus.Unsubscribe("board", ch)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewInMemoryBus()
	ch := bus.Subscribe("closing")

	bus.Unsubscribe("closing", ch)

	// Channel should be closed.
	_, ok := <-ch
	if ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
}

func TestSubscribeAfterUnsubscribe(t *testing.T) {
	bus := NewInMemoryBus()
	ch1 := bus.Subscribe("resubscribe")
	bus.Unsubscribe("resubscribe", ch1)

	ch2 := bus.Subscribe("resubscribe")
	ev := &model.Event{Topic: "resubscribe", Type: "reminder", Data: "new"}
	bus.Publish("resubscribe", ev)

	select {
	case got := <-ch2:
		if got.Data != "new" {
			t.Fatalf("unexpected data: %s", got.Data)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("new subscriber did not receive event")
	}

	bus.Unsubscribe("resubscribe", ch2)
}

func TestPublishStampsEvents(t *testing.T) {
	bus := NewInMemoryBus()
	ch := bus.Subscribe("board")
	defer bus.Unsubscribe("board", ch)

	bus.Publish("board", &model.Event{Type: "task.added", Data: "{}"})
	bus.Publish("board", &model.Event{Type: "task.deleted", Data: "{}"})

	first, second := <-ch, <-ch
	if first.Topic != "board" {
		t.Errorf("Topic = %q, want %q", first.Topic, "board")
	}
	if first.CreatedAt.IsZero() {
		t.Error("CreatedAt was not set")
	}
	if second.ID <= first.ID {
		t.Errorf("ids not increasing: %d then %d", first.ID, second.ID)
	}
}

func TestSinceReplaysMissedEvents(t *testing.T) {
	bus := NewInMemoryBus()
	for _, typ := range []string{"task.added", "reminder", "task.toggled"} {
		bus.Publish("board", &model.Event{Type: typ})
	}
	bus.Publish("other", &model.Event{Type: "noise"})

	got, ok := bus.Since("board", 1)
	if !ok {
		t.Fatal("Since reported a gap for a retained id")
	}
	if len(got) != 2 || got[0].Type != "reminder" || got[1].Type != "task.toggled" {
		t.Fatalf("Since(1) = %+v, want reminder then task.toggled", got)
	}

	got, ok = bus.Since("board", 4)
	if !ok || len(got) != 0 {
		t.Errorf("Since(latest) = %d events, ok=%v; want none, true", len(got), ok)
	}
}

func TestSinceReportsGaps(t *testing.T) {
	bus := NewInMemoryBusWithHistory(2)
	for i := 0; i < 4; i++ {
		bus.Publish("board", &model.Event{Type: "reminder"})
	}

	tests := []struct {
		name    string
		afterID int64
		wantOK  bool
		wantLen int
	}{
		{name: "evicted", afterID: 1, wantOK: false},
		{name: "oldest retained boundary", afterID: 2, wantOK: true, wantLen: 2},
		{name: "never issued", afterID: 10, wantOK: false},
		{name: "negative", afterID: -1, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := bus.Since("board", tt.afterID)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}
