package board

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jxucoder/daybook/pkg/model"
)

type recorder struct {
	mu     sync.Mutex
	events []*model.Event
}

func (r *recorder) Publish(topic string, e *model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.Topic = topic
	r.events = append(r.events, e)
}

func (r *recorder) all() []*model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.Event(nil), r.events...)
}

func newUTCBoard(opts ...Option) *Board {
	opts = append([]Option{WithSeed(SampleSeed(time.UTC)), WithLocation(time.UTC)}, opts...)
	return New(opts...)
}

// ---------------------------------------------------------------------------
// Tasks
// ---------------------------------------------------------------------------

func TestSampleTasks(t *testing.T) {
	b := newUTCBoard()
	tasks := b.Tasks()
	require.Len(t, tasks, 4)
	assert.Equal(t, "Prepare presentation for meeting", tasks[0].Title)
	assert.True(t, tasks[2].Completed)
	assert.False(t, tasks[3].Completed)
}

func TestAddTaskUsesNextID(t *testing.T) {
	b := newUTCBoard()
	require.NoError(t, b.DeleteTask(2))

	task, err := b.AddTask("  Book flights  ")
	require.NoError(t, err)
	assert.Equal(t, 5, task.ID)
	assert.Equal(t, "Book flights", task.Title)
	assert.False(t, task.Completed)

	tasks := b.Tasks()
	assert.Equal(t, task, tasks[len(tasks)-1])
}

func TestAddTaskToEmptyBoard(t *testing.T) {
	b := New(WithSeed(&Seed{}))
	task, err := b.AddTask("first")
	require.NoError(t, err)
	assert.Equal(t, 1, task.ID)
}

func TestAddTaskRejectsBlankTitle(t *testing.T) {
	b := newUTCBoard()
	_, err := b.AddTask("   ")
	require.ErrorIs(t, err, ErrEmptyTitle)
	assert.Len(t, b.Tasks(), 4)
}

func TestToggleTask(t *testing.T) {
	b := newUTCBoard()

	task, err := b.ToggleTask(3)
	require.NoError(t, err)
	assert.False(t, task.Completed)

	task, err = b.ToggleTask(3)
	require.NoError(t, err)
	assert.True(t, task.Completed)

	_, err = b.ToggleTask(42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTask(t *testing.T) {
	b := newUTCBoard()
	require.NoError(t, b.DeleteTask(1))

	for _, task := range b.Tasks() {
		assert.NotEqual(t, 1, task.ID)
	}
	assert.ErrorIs(t, b.DeleteTask(1), ErrNotFound)
}

func TestSearchTasks(t *testing.T) {
	b := newUTCBoard()

	got := b.SearchTasks("report")
	require.NotEmpty(t, got)
	assert.Equal(t, "Update weekly report", got[0].Title)

	assert.Len(t, b.SearchTasks(""), 4)
	assert.Empty(t, b.SearchTasks("zzzz"))
}

func TestMutationsArePublished(t *testing.T) {
	rec := &recorder{}
	b := newUTCBoard(WithPublisher(rec))

	added, err := b.AddTask("Call the bank")
	require.NoError(t, err)
	_, err = b.ToggleTask(added.ID)
	require.NoError(t, err)
	require.NoError(t, b.DeleteTask(added.ID))

	events := rec.all()
	require.Len(t, events, 3)
	assert.Equal(t, EventTaskAdded, events[0].Type)
	assert.Equal(t, EventTaskToggled, events[1].Type)
	assert.Equal(t, EventTaskDeleted, events[2].Type)
	for _, e := range events {
		assert.Equal(t, Topic, e.Topic)
	}

	var toggled model.Task
	require.NoError(t, json.Unmarshal([]byte(events[1].Data), &toggled))
	assert.Equal(t, added.ID, toggled.ID)
	assert.True(t, toggled.Completed)
}

func TestFailedMutationsAreNotPublished(t *testing.T) {
	rec := &recorder{}
	b := newUTCBoard(WithPublisher(rec))

	_, _ = b.AddTask("")
	_, _ = b.ToggleTask(99)
	_ = b.DeleteTask(99)
	assert.Empty(t, rec.all())
}

// ---------------------------------------------------------------------------
// Calendar
// ---------------------------------------------------------------------------

func TestEventsOn(t *testing.T) {
	b := newUTCBoard()

	got := b.EventsOn(time.Date(2025, time.March, 19, 23, 0, 0, 0, time.UTC))
	require.Len(t, got, 1)
	assert.Equal(t, "Project Review", got[0].Title)
	assert.Equal(t, 90, got[0].Duration)
	assert.Equal(t, time.Date(2025, time.March, 19, 15, 30, 0, 0, time.UTC), got[0].End())

	assert.Empty(t, b.EventsOn(time.Date(2025, time.March, 21, 0, 0, 0, 0, time.UTC)))
}

func TestEventsAreOrderedByStart(t *testing.T) {
	start := time.Date(2025, time.March, 18, 0, 0, 0, 0, time.UTC)
	b := New(WithLocation(time.UTC), WithSeed(&Seed{Events: []model.CalendarEvent{
		{ID: 1, Title: "late", Start: start.Add(5 * time.Hour), Duration: 30},
		{ID: 2, Title: "early", Start: start.Add(1 * time.Hour), Duration: 30},
	}}))

	got := b.Events()
	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].Title)
	assert.Equal(t, "late", got[1].Title)
}

func TestUpcoming(t *testing.T) {
	b := newUTCBoard()
	now := time.Date(2025, time.March, 18, 9, 45, 0, 0, time.UTC)

	got := b.Upcoming(now, 30*time.Minute)
	require.Len(t, got, 1)
	assert.Equal(t, "Team Meeting", got[0].Title)

	assert.Empty(t, b.Upcoming(now, 10*time.Minute))
	assert.Empty(t, b.Upcoming(now.Add(time.Hour), 30*time.Minute))
}

// ---------------------------------------------------------------------------
// Seed files
// ---------------------------------------------------------------------------

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSeed(t *testing.T) {
	path := writeSeed(t, `tasks:
  - id: 7
    title: Water plants
    completed: true
events:
  - id: 1
    title: Dentist
    start: 2025-04-02T09:15:00Z
    duration: 30
`)

	seed, err := LoadSeed(path)
	require.NoError(t, err)
	require.Len(t, seed.Tasks, 1)
	assert.Equal(t, model.Task{ID: 7, Title: "Water plants", Completed: true}, seed.Tasks[0])
	require.Len(t, seed.Events, 1)
	assert.True(t, seed.Events[0].Start.Equal(time.Date(2025, time.April, 2, 9, 15, 0, 0, time.UTC)))

	b := New(WithSeed(seed))
	task, err := b.AddTask("Next")
	require.NoError(t, err)
	assert.Equal(t, 8, task.ID)
}

func TestLoadSeedRejectsInvalidFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "tasks: [\n"},
		{"untitled task", "tasks:\n  - id: 1\n"},
		{"duplicate task id", "tasks:\n  - {id: 1, title: a}\n  - {id: 1, title: b}\n"},
		{"event without start", "events:\n  - {id: 1, title: a, duration: 10}\n"},
		{"event without duration", "events:\n  - {id: 1, title: a, start: 2025-04-02T09:15:00Z}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSeed(writeSeed(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadSeedMissingFile(t *testing.T) {
	_, err := LoadSeed(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
