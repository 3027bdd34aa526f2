// Package reminder announces calendar events shortly before they start.
// Lead times come from a default and an optional YAML rules file; due
// reminders are published on the event bus once per event.
package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/jxucoder/daybook/pkg/model"
)

const (
	// Topic is the event bus topic reminders are published on.
	Topic = "board"
	// EventType marks reminder events.
	EventType = "reminder"

	DefaultLead     = 30 * time.Minute
	DefaultInterval = time.Minute
)

// Calendar is the source of upcoming events.
type Calendar interface {
	Upcoming(now time.Time, within time.Duration) []model.CalendarEvent
}

// Publisher receives due reminders.
type Publisher interface {
	Publish(topic string, event *model.Event)
}

// Rule overrides the lead time for events whose title contains Match
// (case-insensitive).
type Rule struct {
	Match string        `yaml:"match"`
	Lead  time.Duration `yaml:"lead"`
}

// Rules is the content of a reminder rules file.
//
//	lead: 30m
//	rules:
//	  - match: client call
//	    lead: 1h
type Rules struct {
	Lead  time.Duration `yaml:"lead"`
	Rules []Rule        `yaml:"rules"`
}

// Reminder is a due notification for one event.
type Reminder struct {
	Event model.CalendarEvent `json:"event"`
	Text  string              `json:"text"`
}

// Scheduler checks the calendar on an interval and publishes reminders.
type Scheduler struct {
	mu       sync.Mutex
	cal      Calendar
	pub      Publisher
	rules    Rules
	interval time.Duration
	now      func() time.Time
	reminded map[string]bool
	logger   *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRules sets lead times. A zero Lead keeps the default.
func WithRules(r Rules) Option {
	return func(s *Scheduler) {
		if r.Lead > 0 {
			s.rules.Lead = r.Lead
		}
		s.rules.Rules = r.Rules
	}
}

// WithInterval sets how often the calendar is checked.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New creates a Scheduler.
func New(cal Calendar, pub Publisher, opts ...Option) *Scheduler {
	s := &Scheduler{
		cal:      cal,
		pub:      pub,
		rules:    Rules{Lead: DefaultLead},
		interval: DefaultInterval,
		now:      time.Now,
		reminded: make(map[string]bool),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadRules reads a YAML rules file.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, err
	}

	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("invalid YAML: %w", err)
	}
	if r.Lead < 0 {
		return Rules{}, fmt.Errorf("lead must not be negative")
	}
	for i, rule := range r.Rules {
		if strings.TrimSpace(rule.Match) == "" {
			return Rules{}, fmt.Errorf("rules[%d]: match is required", i)
		}
		if rule.Lead <= 0 {
			return Rules{}, fmt.Errorf("rules[%d]: lead must be positive", i)
		}
	}
	return r, nil
}

// LeadFor returns the lead time that applies to an event title. The first
// matching rule wins.
func (s *Scheduler) LeadFor(title string) time.Duration {
	lower := strings.ToLower(title)
	for _, r := range s.rules.Rules {
		if strings.Contains(lower, strings.ToLower(r.Match)) {
			return r.Lead
		}
	}
	return s.rules.Lead
}

// Run checks the calendar until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check()
		}
	}
}

// Check publishes reminders for events entering their lead window and
// returns them. Each event is reminded at most once.
func (s *Scheduler) Check() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var due []Reminder
	for _, e := range s.cal.Upcoming(now, s.maxLead()) {
		if e.Start.Sub(now) > s.LeadFor(e.Title) {
			continue
		}
		key := fmt.Sprintf("%d@%d", e.ID, e.Start.Unix())
		if s.reminded[key] {
			continue
		}
		s.reminded[key] = true

		r := Reminder{Event: e, Text: Text(e, now)}
		due = append(due, r)
		s.publish(r)
	}
	return due
}

// Text renders the reminder line for an event.
func Text(e model.CalendarEvent, now time.Time) string {
	if !e.Start.After(now) {
		return fmt.Sprintf("%s is starting now (%d min)", e.Title, e.Duration)
	}
	return fmt.Sprintf("%s starts %s (%d min)", e.Title, humanize.RelTime(e.Start, now, "ago", "from now"), e.Duration)
}

func (s *Scheduler) maxLead() time.Duration {
	lead := s.rules.Lead
	for _, r := range s.rules.Rules {
		lead = max(lead, r.Lead)
	}
	return lead
}

func (s *Scheduler) publish(r Reminder) {
	s.logger.Info("reminder due", "event", r.Event.Title, "start", r.Event.Start)
	if s.pub == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		s.logger.Error("encoding reminder", "error", err)
		return
	}
	s.pub.Publish(Topic, &model.Event{Type: EventType, Data: string(data)})
}
