package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/jxucoder/daybook/internal/config"
)

// configKey describes a single configuration value.
type configKey struct {
	Key    string
	Desc   string
	Secret bool
	Prefix string // expected prefix for validation (e.g. "sk-"), empty = no check
}

// allConfigKeys lists every configurable value in display order.
var allConfigKeys = []configKey{
	{"DAYBOOK_PROVIDER", "LLM provider (auto, openai, anthropic, gemini, ollama)", false, ""},
	{"DAYBOOK_MODEL", "Model override (empty = provider default)", false, ""},
	{"OPENAI_API_KEY", "OpenAI API key", true, "sk-"},
	{"DAYBOOK_OPENAI_BASE_URL", "OpenAI-compatible base URL", false, ""},
	{"ANTHROPIC_API_KEY", "Anthropic API key", true, "sk-ant-"},
	{"GEMINI_API_KEY", "Gemini API key", true, ""},
	{"OLLAMA_HOST", "Ollama server URL", false, ""},
	{"DAYBOOK_ADDR", "Server listen address", false, ""},
	{"DAYBOOK_MAX_DURATION", "Maximum duration of one chat reply", false, ""},
	{"DAYBOOK_BOARD_FILE", "YAML file with tasks and events", false, ""},
	{"DAYBOOK_REMINDER_FILE", "YAML file with reminder rules", false, ""},
	{"DAYBOOK_REMINDER_LEAD", "Default reminder lead time", false, ""},
	{"DAYBOOK_LOG_LEVEL", "Log level (debug, info, warn, error)", false, ""},
	{"DAYBOOK_LOG_FORMAT", "Log format (text, json)", false, ""},
	{"DAYBOOK_LOG_FILE", "Log file (empty = stderr)", false, ""},
	{"DAYBOOK_SERVER", "Server URL used by chat, ask, board and notes", false, ""},
}

var providerKeys = map[string]string{
	config.ProviderOpenAI:    "OPENAI_API_KEY",
	config.ProviderAnthropic: "ANTHROPIC_API_KEY",
	config.ProviderGemini:    "GEMINI_API_KEY",
}

// ---------------------------------------------------------------------------
// Cobra commands
// ---------------------------------------------------------------------------

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage daybook configuration",
	Long: `Manage daybook configuration (provider, API keys, server settings).

Configuration is stored in ~/.daybook/config.env and can be overridden
by environment variables.

  daybook config setup              Interactive setup wizard
  daybook config set KEY VALUE      Set a single config value
  daybook config show               Show current configuration
  daybook config path               Print config file path`,
}

var (
	setupNonInteractive bool
	setupProvider       string
	setupAPIKey         string
)

var configSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Long: `Guided setup that picks an LLM provider and stores its API key.

Non-interactive mode for CI/scripting:
  daybook config setup --non-interactive --provider=openai --api-key=sk-xxx`,
	RunE: runConfigSetup,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a config value",
	Long: `Set a single configuration value. Example:
  daybook config set DAYBOOK_PROVIDER anthropic`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display all configured values. Secrets are masked.",
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), config.FilePath())
		return nil
	},
}

func init() {
	configSetupCmd.Flags().BoolVar(&setupNonInteractive, "non-interactive", false, "Run without prompts (requires --provider)")
	configSetupCmd.Flags().StringVar(&setupProvider, "provider", "", "Provider: auto, openai, anthropic, gemini, ollama")
	configSetupCmd.Flags().StringVar(&setupAPIKey, "api-key", "", "API key for the chosen provider")

	configCmd.AddCommand(configSetupCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// effectiveValue returns the current value for a key, preferring env vars over config file.
func effectiveValue(key string, fileValues map[string]string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fileValues[key]
}

// maskSecret masks a secret string, showing only the first 4 and last 4 characters.
func maskSecret(s string) string {
	if len(s) <= 12 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}

// findKey looks up a configKey by name.
func findKey(name string) configKey {
	for _, ck := range allConfigKeys {
		if ck.Key == name {
			return ck
		}
	}
	return configKey{Key: name}
}

// validateValue checks a value against the rules known for its key.
func validateValue(key, value string) error {
	if value == "" {
		return nil
	}
	ck := findKey(key)
	if ck.Prefix != "" && !strings.HasPrefix(value, ck.Prefix) {
		return fmt.Errorf("%s should start with %q", key, ck.Prefix)
	}
	switch key {
	case "DAYBOOK_PROVIDER":
		if _, err := (&config.Config{Provider: value, OpenAIAPIKey: "-", AnthropicAPIKey: "-", GeminiAPIKey: "-"}).ResolveProvider(); err != nil {
			return err
		}
	case "DAYBOOK_MAX_DURATION", "DAYBOOK_REMINDER_LEAD", "DAYBOOK_REMINDER_INTERVAL":
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			return fmt.Errorf("%s must be a positive duration like 30s or 15m", key)
		}
	case "DAYBOOK_LOG_FORMAT":
		if value != "text" && value != "json" {
			return fmt.Errorf("DAYBOOK_LOG_FORMAT must be text or json")
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Setup wizard
// ---------------------------------------------------------------------------

func runConfigSetup(cmd *cobra.Command, args []string) error {
	fileValues, err := config.ReadFile()
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	if setupNonInteractive {
		return runNonInteractiveSetup(cmd.OutOrStdout(), fileValues)
	}

	provider := effectiveValue("DAYBOOK_PROVIDER", fileValues)
	if provider == "" {
		provider = config.ProviderAuto
	}
	if err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("LLM provider").
			Description("auto picks OpenAI, Anthropic, Gemini, then a local Ollama").
			Options(
				huh.NewOption("Auto", config.ProviderAuto),
				huh.NewOption("OpenAI", config.ProviderOpenAI),
				huh.NewOption("Anthropic", config.ProviderAnthropic),
				huh.NewOption("Gemini", config.ProviderGemini),
				huh.NewOption("Ollama (local)", config.ProviderOllama),
			).
			Value(&provider),
	)).Run(); err != nil {
		return err
	}
	fileValues["DAYBOOK_PROVIDER"] = provider

	var fields []huh.Field
	values := map[string]*string{}
	addField := func(key string) {
		ck := findKey(key)
		v := fileValues[key]
		values[key] = &v
		input := huh.NewInput().
			Title(ck.Desc).
			Description(key).
			Value(&v).
			Validate(func(s string) error { return validateValue(key, strings.TrimSpace(s)) })
		if ck.Secret {
			input = input.EchoMode(huh.EchoModePassword)
		}
		fields = append(fields, input)
	}

	switch provider {
	case config.ProviderAuto:
		addField("OPENAI_API_KEY")
		addField("ANTHROPIC_API_KEY")
		addField("GEMINI_API_KEY")
	case config.ProviderOllama:
		addField("OLLAMA_HOST")
	default:
		addField(providerKeys[provider])
	}
	addField("DAYBOOK_MODEL")
	addField("DAYBOOK_MAX_DURATION")

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return err
	}
	for key, v := range values {
		fileValues[key] = strings.TrimSpace(*v)
	}

	if err := config.WriteFile(fileValues); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  Configuration Summary")
	fmt.Fprintln(out, "  ─────────────────────")
	printSummaryLine(out, "OpenAI", effectiveValue("OPENAI_API_KEY", fileValues) != "")
	printSummaryLine(out, "Anthropic", effectiveValue("ANTHROPIC_API_KEY", fileValues) != "")
	printSummaryLine(out, "Gemini", effectiveValue("GEMINI_API_KEY", fileValues) != "")
	fmt.Fprintf(out, "  %-14s %s\n", "Provider", provider)
	fmt.Fprintf(out, "\n  Saved to %s\n\n", config.FilePath())
	fmt.Fprintln(out, "  Next: daybook serve, then daybook chat")
	return nil
}

// runNonInteractiveSetup handles --non-interactive mode.
func runNonInteractiveSetup(out io.Writer, fileValues map[string]string) error {
	if setupProvider == "" {
		return fmt.Errorf("--provider is required in non-interactive mode")
	}
	if err := validateValue("DAYBOOK_PROVIDER", setupProvider); err != nil {
		return err
	}
	fileValues["DAYBOOK_PROVIDER"] = setupProvider

	if key, ok := providerKeys[setupProvider]; ok {
		if setupAPIKey == "" {
			return fmt.Errorf("--api-key is required for provider %q", setupProvider)
		}
		if err := validateValue(key, setupAPIKey); err != nil {
			return err
		}
		fileValues[key] = setupAPIKey
	}

	if err := config.WriteFile(fileValues); err != nil {
		return err
	}
	fmt.Fprintf(out, "Config written to %s\n", config.FilePath())
	return nil
}

// printSummaryLine prints a check or cross for a config section.
func printSummaryLine(w io.Writer, label string, ok bool) {
	if ok {
		fmt.Fprintf(w, "  \033[32m✓\033[0m %-12s configured\n", label)
	} else {
		fmt.Fprintf(w, "  \033[90m-\033[0m %-12s not configured\n", label)
	}
}

// ---------------------------------------------------------------------------
// config set / config show
// ---------------------------------------------------------------------------

// runConfigSet sets a single key=value in the config file.
func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	if err := validateValue(key, value); err != nil {
		return err
	}

	fileValues, err := config.ReadFile()
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	fileValues[key] = value

	if err := config.WriteFile(fileValues); err != nil {
		return err
	}

	if findKey(key).Secret {
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, maskSecret(value))
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
	}
	return nil
}

// runConfigShow displays the current effective configuration.
func runConfigShow(cmd *cobra.Command, args []string) error {
	fileValues, err := config.ReadFile()
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config file: %s\n\n", config.FilePath())

	for _, ck := range allConfigKeys {
		value := effectiveValue(ck.Key, fileValues)
		source := ""
		if os.Getenv(ck.Key) != "" {
			source = " (from env)"
		} else if fileValues[ck.Key] != "" {
			source = " (from config file)"
		}

		display := "(not set)"
		if value != "" {
			if ck.Secret {
				display = maskSecret(value)
			} else {
				display = value
			}
		}

		fmt.Fprintf(out, "  %-25s %s%s\n", ck.Key, display, source)
	}
	return nil
}
