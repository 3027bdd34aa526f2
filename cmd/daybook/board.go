package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/jxucoder/daybook/pkg/model"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show and edit tasks and calendar events",
	Long: `Work with the server's task list and calendar.

  daybook board tasks [--search text]
  daybook board add "Book flights"
  daybook board toggle 2
  daybook board rm 2
  daybook board events [--date 2025-03-18]`,
}

var boardSearch string
var boardDate string

func init() {
	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/tasks"
			if boardSearch != "" {
				path += "?q=" + url.QueryEscape(boardSearch)
			}
			var tasks []model.Task
			if err := apiCall(http.MethodGet, path, nil, &tasks); err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
	tasksCmd.Flags().StringVarP(&boardSearch, "search", "s", "", "Fuzzy filter on task titles")

	addCmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var task model.Task
			body := map[string]string{"title": strings.Join(args, " ")}
			if err := apiCall(http.MethodPost, "/api/tasks", body, &task); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added task %d: %s\n", task.ID, task.Title)
			return nil
		},
	}

	toggleCmd := &cobra.Command{
		Use:   "toggle ID",
		Short: "Mark a task done or not done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			var task model.Task
			if err := apiCall(http.MethodPost, fmt.Sprintf("/api/tasks/%d/toggle", id), nil, &task); err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), []model.Task{task})
			return nil
		},
	}

	rmCmd := &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			if err := apiCall(http.MethodDelete, fmt.Sprintf("/api/tasks/%d", id), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d\n", id)
			return nil
		},
	}

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "List calendar events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/events"
			if boardDate != "" {
				path += "?date=" + url.QueryEscape(boardDate)
			}
			var events []model.CalendarEvent
			if err := apiCall(http.MethodGet, path, nil, &events); err != nil {
				return err
			}
			printEvents(cmd.OutOrStdout(), events, time.Now())
			return nil
		},
	}
	eventsCmd.Flags().StringVarP(&boardDate, "date", "d", "", "Only events on this day (YYYY-MM-DD)")

	boardCmd.AddCommand(tasksCmd, addCmd, toggleCmd, rmCmd, eventsCmd)
	rootCmd.AddCommand(boardCmd)
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

const titleWidth = 40

func printTasks(w io.Writer, tasks []model.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	for _, t := range tasks {
		mark := "[ ]"
		if t.Completed {
			mark = "[x]"
		}
		fmt.Fprintf(w, "%3d  %s  %s\n", t.ID, mark, t.Title)
	}
}

func printEvents(w io.Writer, events []model.CalendarEvent, now time.Time) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events.")
		return
	}
	for _, e := range events {
		title := runewidth.FillRight(runewidth.Truncate(e.Title, titleWidth, "..."), titleWidth)
		fmt.Fprintf(w, "%s  %s  %s-%s  (%d min, %s)\n",
			title,
			e.Start.Format("Mon Jan 2"),
			e.Start.Format("15:04"),
			e.End().Format("15:04"),
			e.Duration,
			humanize.RelTime(e.Start, now, "ago", "from now"),
		)
	}
}

// ---------------------------------------------------------------------------
// HTTP helpers
// ---------------------------------------------------------------------------

var apiClient = &http.Client{Timeout: 30 * time.Second}

// apiCall sends a JSON request to the server and decodes the JSON reply
// into out, if non-nil.
func apiCall(method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, strings.TrimRight(serverURL, "/")+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := apiClient.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, e.Error)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
