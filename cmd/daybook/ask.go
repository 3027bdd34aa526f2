package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jxucoder/daybook/pkg/chatclient"
)

var askFlags transportFlags

var askCmd = &cobra.Command{
	Use:   "ask QUESTION",
	Short: "Ask a single question and stream the answer",
	Long: `Send one message to the relay and print the reply as it streams in.

  daybook ask "what do I have on Wednesday?"
  daybook ask --protocol data "summarise my week"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askFlags.register(askCmd)
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	t, closer, err := askFlags.transport()
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	printer := &streamPrinter{w: cmd.OutOrStdout()}
	client := chatclient.New(t, chatclient.WithOnUpdate(printer.update))

	err = client.Submit(ctx, strings.Join(args, " "))
	if printer.printed > 0 {
		fmt.Fprintln(cmd.OutOrStdout())
	}

	var statusErr *chatclient.StatusError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &statusErr):
		return fmt.Errorf("server returned %d: %s", statusErr.Code, statusErr.Message)
	case errors.Is(err, chatclient.ErrEmptyInput):
		return err
	case ctx.Err() != nil:
		return nil
	default:
		return fmt.Errorf("reaching %s: %w", serverURL, err)
	}
}
