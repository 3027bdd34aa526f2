package board

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jxucoder/daybook/pkg/model"
)

// Seed is the initial content of a board.
//
// Example file:
//
//	tasks:
//	  - id: 1
//	    title: Review project proposal
//	events:
//	  - id: 1
//	    title: Team Meeting
//	    start: 2025-03-18T10:00:00Z
//	    duration: 60
type Seed struct {
	Tasks  []model.Task          `yaml:"tasks"`
	Events []model.CalendarEvent `yaml:"events"`
}

// SampleSeed returns the built-in sample tasks and events.
func SampleSeed(loc *time.Location) *Seed {
	at := func(day, hour, minute int) time.Time {
		return time.Date(2025, time.March, day, hour, minute, 0, 0, loc)
	}
	return &Seed{
		Tasks: []model.Task{
			{ID: 1, Title: "Prepare presentation for meeting"},
			{ID: 2, Title: "Review project proposal"},
			{ID: 3, Title: "Send follow-up emails", Completed: true},
			{ID: 4, Title: "Update weekly report"},
		},
		Events: []model.CalendarEvent{
			{ID: 1, Title: "Team Meeting", Start: at(18, 10, 0), Duration: 60},
			{ID: 2, Title: "Project Review", Start: at(19, 14, 0), Duration: 90},
			{ID: 3, Title: "Client Call", Start: at(20, 11, 30), Duration: 45},
		},
	}
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if err := seed.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &seed, nil
}

func (s *Seed) validate() error {
	taskIDs := make(map[int]bool, len(s.Tasks))
	for i, t := range s.Tasks {
		if t.Title == "" {
			return fmt.Errorf("tasks[%d]: title is required", i)
		}
		if taskIDs[t.ID] {
			return fmt.Errorf("tasks[%d]: duplicate id %d", i, t.ID)
		}
		taskIDs[t.ID] = true
	}
	eventIDs := make(map[int]bool, len(s.Events))
	for i, e := range s.Events {
		if e.Title == "" {
			return fmt.Errorf("events[%d]: title is required", i)
		}
		if e.Start.IsZero() {
			return fmt.Errorf("events[%d]: start is required", i)
		}
		if e.Duration <= 0 {
			return fmt.Errorf("events[%d]: duration must be positive", i)
		}
		if eventIDs[e.ID] {
			return fmt.Errorf("events[%d]: duplicate id %d", i, e.ID)
		}
		eventIDs[e.ID] = true
	}
	return nil
}
