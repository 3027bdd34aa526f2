package model

import "time"

// Task is one entry of the task list.
type Task struct {
	ID        int    `json:"id" yaml:"id"`
	Title     string `json:"title" yaml:"title"`
	Completed bool   `json:"completed" yaml:"completed"`
}

// CalendarEvent is a scheduled block on the calendar.
type CalendarEvent struct {
	ID       int       `json:"id" yaml:"id"`
	Title    string    `json:"title" yaml:"title"`
	Start    time.Time `json:"start" yaml:"start"`
	Duration int       `json:"duration" yaml:"duration"` // minutes
}

// End returns the time the event finishes.
func (e CalendarEvent) End() time.Time {
	return e.Start.Add(time.Duration(e.Duration) * time.Minute)
}

// Event is a notification published on the event bus.
type Event struct {
	ID        int64     `json:"id"`
	Topic     string    `json:"topic"`
	Type      string    `json:"type"` // "task.added", "task.toggled", "task.deleted", "reminder"
	Data      string    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}
