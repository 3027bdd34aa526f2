package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jxucoder/daybook/pkg/chatclient"
	"github.com/jxucoder/daybook/pkg/model"
)

var chatFlags transportFlags

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the interactive chat",
	Long: `Chat with the assistant about your tasks and calendar.

  enter    send          ctrl+y   copy last reply
  ctrl+l   clear chat    esc      quit`,
	RunE: runChat,
}

func init() {
	chatFlags.register(chatCmd)
	rootCmd.AddCommand(chatCmd)
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	hintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// snapshotMsg carries a client state change into the bubbletea loop.
type snapshotMsg chatclient.Snapshot

// submitDoneMsg reports the end of a Submit call.
type submitDoneMsg struct{ err error }

type chatModel struct {
	ctx      context.Context
	client   *chatclient.Client
	input    textinput.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	snap     chatclient.Snapshot
	width    int
	height   int
	status   string
	err      error
}

func newChatModel(ctx context.Context) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask about your tasks or calendar..."
	ti.Prompt = "› "
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return chatModel{ctx: ctx, input: ti, spinner: sp, width: 80}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-4, 10)
		m.renderer = newRenderer(msg.Width - 2)
		return m, nil

	case snapshotMsg:
		m.snap = chatclient.Snapshot(msg)
		return m, nil

	case submitDoneMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyCtrlL:
			if err := m.client.Clear(); err != nil {
				m.status = "Wait for the reply to finish before clearing."
			} else {
				m.status, m.err = "", nil
			}
			return m, nil

		case tea.KeyCtrlY:
			if text := lastReply(m.client.Messages()); text != "" {
				if err := clipboard.WriteAll(text); err != nil {
					m.status = "Copy failed: " + err.Error()
				} else {
					m.status = "Copied last reply."
				}
			}
			return m, nil

		case tea.KeyEnter:
			text := m.input.Value()
			if strings.TrimSpace(text) == "" || m.client.Loading() {
				return m, nil
			}
			m.input.Reset()
			m.status, m.err = "", nil
			return m, m.submit(text)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m chatModel) submit(text string) tea.Cmd {
	client, ctx := m.client, m.ctx
	return func() tea.Msg {
		err := client.Submit(ctx, text)
		if errors.Is(err, chatclient.ErrBusy) {
			err = nil
		}
		return submitDoneMsg{err: err}
	}
}

func (m chatModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("daybook") + hintStyle.Render("  "+serverURL) + "\n\n")

	var body strings.Builder
	for i, msg := range m.snap.Messages {
		streaming := m.snap.Loading && i == len(m.snap.Messages)-1
		body.WriteString(m.renderMessage(msg, streaming))
		body.WriteString("\n\n")
	}
	if m.snap.Loading {
		if last, ok := m.snap.Messages.Last(); !ok || last.Role != model.RoleAssistant {
			body.WriteString(m.spinner.View() + " thinking...\n\n")
		}
	}
	b.WriteString(tail(body.String(), m.height-6))

	if m.err != nil {
		b.WriteString(errorStyle.Render(describeChatError(m.err)) + "\n")
	}
	if m.status != "" {
		b.WriteString(hintStyle.Render(m.status) + "\n")
	}
	b.WriteString(m.input.View() + "\n")
	b.WriteString(hintStyle.Render("enter send · ctrl+y copy · ctrl+l clear · esc quit"))
	return b.String()
}

func (m chatModel) renderMessage(msg model.Message, streaming bool) string {
	if msg.Role == model.RoleUser {
		return userStyle.Render("You") + "\n" + msg.Content
	}
	content := msg.Content
	if !streaming && m.renderer != nil {
		if out, err := m.renderer.Render(content); err == nil {
			content = strings.Trim(out, "\n")
		}
	}
	return assistantStyle.Render("Assistant") + "\n" + content
}

func runChat(cmd *cobra.Command, args []string) error {
	t, closer, err := chatFlags.transport()
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	m := newChatModel(ctx)
	var prog *tea.Program
	m.client = chatclient.New(t, chatclient.WithOnUpdate(func(s chatclient.Snapshot) {
		if prog != nil {
			prog.Send(snapshotMsg(s))
		}
	}))

	prog = tea.NewProgram(m, tea.WithAltScreen())
	_, err = prog.Run()
	return err
}

func newRenderer(width int) *glamour.TermRenderer {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

// lastReply returns the most recent assistant message.
func lastReply(conv model.Conversation) string {
	for i := len(conv) - 1; i >= 0; i-- {
		if conv[i].Role == model.RoleAssistant {
			return conv[i].Content
		}
	}
	return ""
}

// tail keeps the last n lines of s.
func tail(s string, n int) string {
	if n <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

func describeChatError(err error) string {
	var statusErr *chatclient.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("Server error %d: %s", statusErr.Code, statusErr.Message)
	}
	return "Connection problem: " + err.Error()
}
