package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jxucoder/daybook/internal/config"
	"github.com/jxucoder/daybook/pkg/notes"
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Sticky notes",
	Long: `Read and write sticky notes, or expose them to an MCP client.

  daybook notes add "call the plumber"
  daybook notes list
  daybook notes mcp        Serve tools add_notes/read_notes over stdio`,
}

func init() {
	addCmd := &cobra.Command{
		Use:   "add TEXT",
		Short: "Add a note",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var n notes.Note
			if err := apiCall(http.MethodPost, "/api/notes", map[string]string{"content": strings.Join(args, " ")}, &n); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), notes.AddedText)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var list []notes.Note
			if err := apiCall(http.MethodGet, "/api/notes", nil, &list); err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), notes.NoNotesText)
				return nil
			}
			for _, n := range list {
				fmt.Fprintf(cmd.OutOrStdout(), "%3d  %-14s  %s\n", n.ID, humanize.Time(n.CreatedAt), n.Content)
			}
			return nil
		},
	}

	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve notes over MCP on stdin/stdout",
		Long: `Run an MCP server on stdio backed by the local notes database. Register it
with an MCP client as the command "daybook notes mcp".`,
		Args: cobra.NoArgs,
		RunE: runNotesMCP,
	}

	notesCmd.AddCommand(addCmd, listCmd, mcpCmd)
	rootCmd.AddCommand(notesCmd)
}

func runNotesMCP(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := notes.NewStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return notes.NewServer(store, version).Serve(ctx, os.Stdin, os.Stdout)
}
