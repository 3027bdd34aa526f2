// daybook
//
// A personal assistant for tasks and calendar: a streaming chat relay in
// front of an LLM, a task board, reminders and sticky notes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jxucoder/daybook/internal/config"
)

var (
	version   = "dev"
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "daybook",
	Short: "daybook - chat with an assistant about your tasks and calendar",
	Long: `daybook relays your conversation to an LLM that helps organise tasks and
calendar events, and streams the reply back as it is written.

  daybook config setup                 Choose a provider and set API keys
  daybook serve                        Start the server
  daybook chat                         Open the interactive chat
  daybook ask "what's on tomorrow?"    Ask a single question
  daybook board tasks                  List tasks
  daybook notes mcp                    Serve sticky notes over MCP (stdio)`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", config.ServerURL(), "daybook server URL")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
