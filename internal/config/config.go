// Package config provides configuration management for daybook.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// Provider names accepted by DAYBOOK_PROVIDER.
const (
	ProviderAuto      = "auto"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
)

// DefaultServerURL is where clients look for the relay.
const DefaultServerURL = "http://localhost:7080"

// Config holds all configuration for the daybook server.
type Config struct {
	// ServerAddr is the address the HTTP server listens on (e.g., ":7080").
	ServerAddr string

	// DataDir is the directory for persistent data (notes DB, config.env).
	DataDir string

	// DatabasePath is the full path to the notes SQLite database.
	DatabasePath string

	// Provider selects the LLM backend: auto, openai, anthropic, gemini, ollama.
	Provider string
	// Model overrides the provider's default model.
	Model string

	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	GeminiAPIKey    string
	OllamaHost      string

	// MaxDuration bounds a single chat turn. Default: 30 seconds.
	MaxDuration time.Duration

	// BoardFile is an optional YAML seed for tasks and calendar events.
	BoardFile string

	// ReminderFile is an optional YAML file with per-event lead times.
	ReminderFile     string
	ReminderLead     time.Duration
	ReminderInterval time.Duration

	LogLevel  string
	LogFormat string
	// LogFile, when set, receives logs instead of stderr.
	LogFile string
}

// Load creates a Config from the config file and environment variables.
// Values are resolved in order: environment variable > config file > default.
func Load() (*Config, error) {
	if err := loadConfigFile(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", FilePath(), err)
	}

	dataDir := envOr("DAYBOOK_DATA_DIR", defaultDataDir())
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	cfg := &Config{
		ServerAddr:       envOr("DAYBOOK_ADDR", ":7080"),
		DataDir:          dataDir,
		DatabasePath:     filepath.Join(dataDir, "daybook.db"),
		Provider:         envOr("DAYBOOK_PROVIDER", ProviderAuto),
		Model:            os.Getenv("DAYBOOK_MODEL"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    os.Getenv("DAYBOOK_OPENAI_BASE_URL"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		OllamaHost:       os.Getenv("OLLAMA_HOST"),
		MaxDuration:      envOrDuration("DAYBOOK_MAX_DURATION", 30*time.Second),
		BoardFile:        os.Getenv("DAYBOOK_BOARD_FILE"),
		ReminderFile:     os.Getenv("DAYBOOK_REMINDER_FILE"),
		ReminderLead:     envOrDuration("DAYBOOK_REMINDER_LEAD", 30*time.Minute),
		ReminderInterval: envOrDuration("DAYBOOK_REMINDER_INTERVAL", time.Minute),
		LogLevel:         envOr("DAYBOOK_LOG_LEVEL", "info"),
		LogFormat:        envOr("DAYBOOK_LOG_FORMAT", "text"),
		LogFile:          os.Getenv("DAYBOOK_LOG_FILE"),
	}

	return cfg, nil
}

// ServerURL returns the relay base URL used by the client commands.
func ServerURL() string {
	_ = loadConfigFile()
	return envOr("DAYBOOK_SERVER", DefaultServerURL)
}

// loadConfigFile loads config.env into the environment. Variables that are
// already set are left alone, so env vars always win.
func loadConfigFile() error {
	err := godotenv.Load(FilePath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// FilePath returns the config.env location inside the data directory.
func FilePath() string {
	return filepath.Join(envOr("DAYBOOK_DATA_DIR", defaultDataDir()), "config.env")
}

// ReadFile returns the key/value pairs stored in config.env. A missing file
// yields an empty map.
func ReadFile() (map[string]string, error) {
	values, err := godotenv.Read(FilePath())
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	return values, err
}

// WriteFile replaces config.env with values. Empty values are dropped.
func WriteFile(values map[string]string) error {
	path := FilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	kept := make(map[string]string, len(values))
	for k, v := range values {
		if v != "" {
			kept[k] = v
		}
	}
	if err := godotenv.Write(kept, path); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return os.Chmod(path, 0o600)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if _, err := c.ResolveProvider(); err != nil {
		return err
	}
	if c.MaxDuration <= 0 {
		return fmt.Errorf("DAYBOOK_MAX_DURATION must be positive")
	}
	if c.ReminderInterval <= 0 {
		return fmt.Errorf("DAYBOOK_REMINDER_INTERVAL must be positive")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("DAYBOOK_LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// ResolveProvider returns the concrete provider name. In auto mode the first
// backend with an API key wins, in the order OpenAI, Anthropic, Gemini, with
// a local Ollama as the fallback.
func (c *Config) ResolveProvider() (string, error) {
	switch c.Provider {
	case "", ProviderAuto:
		switch {
		case c.OpenAIAPIKey != "":
			return ProviderOpenAI, nil
		case c.AnthropicAPIKey != "":
			return ProviderAnthropic, nil
		case c.GeminiAPIKey != "":
			return ProviderGemini, nil
		default:
			return ProviderOllama, nil
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return "", fmt.Errorf("OPENAI_API_KEY is required for provider %q", c.Provider)
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return "", fmt.Errorf("ANTHROPIC_API_KEY is required for provider %q", c.Provider)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return "", fmt.Errorf("GEMINI_API_KEY is required for provider %q", c.Provider)
		}
	case ProviderOllama:
	default:
		return "", fmt.Errorf("unknown provider %q (want auto, openai, anthropic, gemini or ollama)", c.Provider)
	}
	return c.Provider, nil
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".daybook"
	}
	return filepath.Join(home, ".daybook")
}
