// Package board keeps the mock task list and calendar in memory.
//
// Nothing here is persisted: a Board starts from seed data (the built-in
// sample or a YAML file) and lives as long as the process.
package board

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/jxucoder/daybook/pkg/model"
)

// Topic is the event bus topic board changes are published on.
const Topic = "board"

// Event types published on Topic.
const (
	EventTaskAdded   = "task.added"
	EventTaskToggled = "task.toggled"
	EventTaskDeleted = "task.deleted"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrEmptyTitle = errors.New("title is required")
)

// Publisher receives board change notifications.
type Publisher interface {
	Publish(topic string, event *model.Event)
}

// Board is the in-memory task list and calendar.
type Board struct {
	mu     sync.RWMutex
	tasks  []model.Task
	events []model.CalendarEvent
	loc    *time.Location
	pub    Publisher
}

// Option configures a Board.
type Option func(*Board)

// WithSeed replaces the built-in sample data.
func WithSeed(s *Seed) Option {
	return func(b *Board) {
		b.tasks = append([]model.Task(nil), s.Tasks...)
		b.events = append([]model.CalendarEvent(nil), s.Events...)
	}
}

// WithPublisher sends every mutation to p.
func WithPublisher(p Publisher) Option {
	return func(b *Board) { b.pub = p }
}

// WithLocation sets the zone used to decide which day an event falls on.
func WithLocation(loc *time.Location) Option {
	return func(b *Board) { b.loc = loc }
}

// New creates a board holding the sample data unless WithSeed is given.
func New(opts ...Option) *Board {
	b := &Board{loc: time.Local}
	sample := SampleSeed(time.Local)
	b.tasks = sample.Tasks
	b.events = sample.Events
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Tasks returns a copy of the task list in insertion order.
func (b *Board) Tasks() []model.Task {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]model.Task(nil), b.tasks...)
}

// AddTask appends a task with the next free id. Titles are trimmed; blank
// titles are rejected.
func (b *Board) AddTask(title string) (model.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Task{}, ErrEmptyTitle
	}

	b.mu.Lock()
	id := 0
	for _, t := range b.tasks {
		id = max(id, t.ID)
	}
	task := model.Task{ID: id + 1, Title: title}
	b.tasks = append(b.tasks, task)
	b.mu.Unlock()

	b.publish(EventTaskAdded, task)
	return task, nil
}

// ToggleTask flips the completion flag of a task.
func (b *Board) ToggleTask(id int) (model.Task, error) {
	b.mu.Lock()
	i := b.indexOf(id)
	if i < 0 {
		b.mu.Unlock()
		return model.Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	b.tasks[i].Completed = !b.tasks[i].Completed
	task := b.tasks[i]
	b.mu.Unlock()

	b.publish(EventTaskToggled, task)
	return task, nil
}

// DeleteTask removes a task.
func (b *Board) DeleteTask(id int) error {
	b.mu.Lock()
	i := b.indexOf(id)
	if i < 0 {
		b.mu.Unlock()
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	task := b.tasks[i]
	b.tasks = append(b.tasks[:i], b.tasks[i+1:]...)
	b.mu.Unlock()

	b.publish(EventTaskDeleted, task)
	return nil
}

// SearchTasks returns tasks whose titles fuzzily match query, best match
// first. An empty query returns every task.
func (b *Board) SearchTasks(query string) []model.Task {
	tasks := b.Tasks()
	query = strings.TrimSpace(query)
	if query == "" {
		return tasks
	}
	titles := make([]string, len(tasks))
	for i, t := range tasks {
		titles[i] = t.Title
	}
	matches := fuzzy.Find(query, titles)
	out := make([]model.Task, 0, len(matches))
	for _, m := range matches {
		out = append(out, tasks[m.Index])
	}
	return out
}

// Events returns every calendar event ordered by start time.
func (b *Board) Events() []model.CalendarEvent {
	b.mu.RLock()
	out := append([]model.CalendarEvent(nil), b.events...)
	b.mu.RUnlock()
	sortEvents(out)
	return out
}

// EventsOn returns the events that start on the same calendar date as day,
// in the board's location.
func (b *Board) EventsOn(day time.Time) []model.CalendarEvent {
	y, m, d := day.In(b.loc).Date()
	var out []model.CalendarEvent
	for _, e := range b.Events() {
		ey, em, ed := e.Start.In(b.loc).Date()
		if ey == y && em == m && ed == d {
			out = append(out, e)
		}
	}
	return out
}

// Upcoming returns events starting in [now, now+within].
func (b *Board) Upcoming(now time.Time, within time.Duration) []model.CalendarEvent {
	limit := now.Add(within)
	var out []model.CalendarEvent
	for _, e := range b.Events() {
		if !e.Start.Before(now) && !e.Start.After(limit) {
			out = append(out, e)
		}
	}
	return out
}

// Location is the zone used for day boundaries.
func (b *Board) Location() *time.Location {
	return b.loc
}

func (b *Board) indexOf(id int) int {
	for i, t := range b.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (b *Board) publish(typ string, task model.Task) {
	if b.pub == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		return
	}
	b.pub.Publish(Topic, &model.Event{Type: typ, Data: string(data)})
}

func sortEvents(events []model.CalendarEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
}
