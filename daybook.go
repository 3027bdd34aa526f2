// Package daybook is the top-level entry point for the daybook assistant
// server.
//
// Use the Builder to compose an application from configuration:
//
//	cfg, _ := config.Load()
//	app, err := daybook.NewBuilder().WithConfig(cfg).Build(ctx)
//	app.Start(ctx)
//
// Or replace individual components:
//
//	app, err := daybook.NewBuilder().
//	    WithConfig(cfg).
//	    WithProvider(myProvider).
//	    WithBoard(myBoard).
//	    Build(ctx)
package daybook

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jxucoder/daybook/internal/config"
	"github.com/jxucoder/daybook/internal/relay"
	"github.com/jxucoder/daybook/internal/server"
	"github.com/jxucoder/daybook/pkg/board"
	"github.com/jxucoder/daybook/pkg/eventbus"
	"github.com/jxucoder/daybook/pkg/llm"
	llmAnthropic "github.com/jxucoder/daybook/pkg/llm/anthropic"
	llmGemini "github.com/jxucoder/daybook/pkg/llm/gemini"
	llmOllama "github.com/jxucoder/daybook/pkg/llm/ollama"
	llmOpenAI "github.com/jxucoder/daybook/pkg/llm/openai"
	"github.com/jxucoder/daybook/pkg/notes"
	"github.com/jxucoder/daybook/pkg/reminder"
)

// Builder constructs a daybook App.
type Builder struct {
	config   *config.Config
	provider llm.Provider
	board    *board.Board
	bus      eventbus.Bus
	notes    *notes.Store
	logger   *slog.Logger
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithConfig sets the application configuration.
func (b *Builder) WithConfig(cfg *config.Config) *Builder {
	b.config = cfg
	return b
}

// WithProvider sets the completion provider, bypassing provider selection.
func (b *Builder) WithProvider(p llm.Provider) *Builder {
	b.provider = p
	return b
}

// WithBoard sets the task and calendar board.
func (b *Builder) WithBoard(bd *board.Board) *Builder {
	b.board = bd
	return b
}

// WithBus sets the event bus implementation.
func (b *Builder) WithBus(bus eventbus.Bus) *Builder {
	b.bus = bus
	return b
}

// WithNotes sets the notes store.
func (b *Builder) WithNotes(s *notes.Store) *Builder {
	b.notes = s
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// Build creates the App. Missing components are filled with defaults.
func (b *Builder) Build(ctx context.Context) (*App, error) {
	if err := applyDefaults(ctx, b); err != nil {
		return nil, err
	}

	rl := relay.New(b.provider, relay.Config{
		Model:       b.config.Model,
		MaxDuration: b.config.MaxDuration,
		Logger:      b.logger,
	})

	var rules reminder.Rules
	if b.config.ReminderFile != "" {
		r, err := reminder.LoadRules(b.config.ReminderFile)
		if err != nil {
			return nil, fmt.Errorf("loading reminder rules: %w", err)
		}
		rules = r
	}
	if rules.Lead == 0 {
		rules.Lead = b.config.ReminderLead
	}
	reminders := reminder.New(b.board, b.bus,
		reminder.WithRules(rules),
		reminder.WithInterval(b.config.ReminderInterval),
		reminder.WithLogger(b.logger),
	)

	srv := server.New(b.config, server.Deps{
		Relay:     rl,
		Board:     b.board,
		Bus:       b.bus,
		Notes:     b.notes,
		Reminders: reminders,
		Logger:    b.logger,
	})

	return &App{config: b.config, server: srv, board: b.board, notes: b.notes}, nil
}

// App is a daybook application ready to serve.
type App struct {
	config *config.Config
	server *server.Server
	board  *board.Board
	notes  *notes.Store
}

// Handler returns the HTTP handler, for embedding or tests.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// Board returns the task and calendar board.
func (a *App) Board() *board.Board { return a.board }

// Start starts the HTTP server and the reminder loop. Blocks until ctx is done.
func (a *App) Start(ctx context.Context) error {
	return a.server.Start(ctx)
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

// applyDefaults fills in missing fields on the builder.
func applyDefaults(ctx context.Context, b *Builder) error {
	if b.config == nil {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		b.config = cfg
	}
	if b.config.MaxDuration == 0 {
		b.config.MaxDuration = relay.DefaultMaxDuration
	}
	if b.config.ReminderLead == 0 {
		b.config.ReminderLead = reminder.DefaultLead
	}
	if b.config.ReminderInterval == 0 {
		b.config.ReminderInterval = reminder.DefaultInterval
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}

	if b.bus == nil {
		b.bus = eventbus.NewInMemoryBus()
	}

	if b.board == nil {
		opts := []board.Option{board.WithPublisher(b.bus)}
		if b.config.BoardFile != "" {
			seed, err := board.LoadSeed(b.config.BoardFile)
			if err != nil {
				return fmt.Errorf("loading board: %w", err)
			}
			opts = append(opts, board.WithSeed(seed))
		}
		b.board = board.New(opts...)
	}

	if b.notes == nil && b.config.DatabasePath != "" {
		st, err := notes.NewStore(b.config.DatabasePath)
		if err != nil {
			return fmt.Errorf("initializing notes store: %w", err)
		}
		b.notes = st
	}

	if b.provider == nil {
		p, err := ProviderFromConfig(ctx, b.config)
		if err != nil {
			return err
		}
		b.provider = p
	}

	return nil
}

// ProviderFromConfig creates the completion provider selected by cfg.
func ProviderFromConfig(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	name, err := cfg.ResolveProvider()
	if err != nil {
		return nil, err
	}

	switch name {
	case config.ProviderOpenAI:
		return llmOpenAI.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model)
	case config.ProviderAnthropic:
		return llmAnthropic.New(cfg.AnthropicAPIKey, cfg.Model)
	case config.ProviderGemini:
		return llmGemini.New(ctx, cfg.GeminiAPIKey, cfg.Model)
	default:
		return llmOllama.New(cfg.OllamaHost, cfg.Model)
	}
}
