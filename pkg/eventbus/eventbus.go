// Package eventbus provides the Bus interface and an in-memory implementation
// for pushing board changes and reminders to live subscribers.
//
// Each topic keeps a short history so a stream that reconnects can be
// resumed from the last event id it saw instead of starting over.
package eventbus

import (
	"sync"
	"time"

	"github.com/jxucoder/daybook/pkg/model"
)

const (
	subscriberBuffer = 64
	// DefaultHistory is how many recent events each topic retains for replay.
	DefaultHistory = 256
)

// Bus provides pub/sub for events keyed by topic.
type Bus interface {
	Subscribe(topic string) chan *model.Event
	Unsubscribe(topic string, ch chan *model.Event)
	Publish(topic string, event *model.Event)
	// Since returns retained events on topic with an id above afterID,
	// oldest first. ok is false when some of those events are no longer
	// retained, or afterID was never issued by this bus.
	Since(topic string, afterID int64) (events []*model.Event, ok bool)
}

// InMemoryBus is the default in-memory Bus implementation.
type InMemoryBus struct {
	mu      sync.Mutex
	subs    map[string][]chan *model.Event
	history map[string][]*model.Event
	// evicted is the highest id dropped from each topic's history.
	evicted map[string]int64
	limit   int
	nextID  int64
}

// NewInMemoryBus creates a bus retaining DefaultHistory events per topic.
func NewInMemoryBus() *InMemoryBus {
	return NewInMemoryBusWithHistory(DefaultHistory)
}

// NewInMemoryBusWithHistory creates a bus retaining up to limit events per
// topic. A limit below 1 keeps one.
func NewInMemoryBusWithHistory(limit int) *InMemoryBus {
	if limit < 1 {
		limit = 1
	}
	return &InMemoryBus{
		subs:    make(map[string][]chan *model.Event),
		history: make(map[string][]*model.Event),
		evicted: make(map[string]int64),
		limit:   limit,
	}
}

// Subscribe creates a channel that receives events for a topic.
func (b *InMemoryBus) Subscribe(topic string) chan *model.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *model.Event, subscriberBuffer)
	b.subs[topic] = append(b.subs[topic], ch)
	return ch
}

// Unsubscribe removes a channel from the topic's subscribers.
func (b *InMemoryBus) Unsubscribe(topic string, ch chan *model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[topic]
	for i, s := range subs {
		if s == ch {
			b.subs[topic] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish assigns the next id, fills in topic and time when unset, records
// the event in the topic's history and sends it to every subscriber.
func (b *InMemoryBus) Publish(topic string, event *model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	event.ID = b.nextID
	if event.Topic == "" {
		event.Topic = topic
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	h := append(b.history[topic], event)
	if over := len(h) - b.limit; over > 0 {
		b.evicted[topic] = h[over-1].ID
		h = append([]*model.Event(nil), h[over:]...)
	}
	b.history[topic] = h

	for _, ch := range b.subs[topic] {
		select {
		case ch <- event:
		default:
			// Drop event if subscriber is too slow.
		}
	}
}

// Since implements Bus.
func (b *InMemoryBus) Since(topic string, afterID int64) ([]*model.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if afterID < 0 || afterID > b.nextID || afterID < b.evicted[topic] {
		return nil, false
	}
	var out []*model.Event
	for _, ev := range b.history[topic] {
		if ev.ID > afterID {
			out = append(out, ev)
		}
	}
	return out, true
}
