package chatcmder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/papercomputeco/parley/pkg/gateway"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/provider"
)

const inputHeight = 3

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// replyMsg is delivered when a send completes.
type replyMsg struct {
	reply *llm.Message
	err   error
}

type model struct {
	ctx    context.Context
	gw     *gateway.Gateway
	toasts *gateway.ToastLog
	label  string
	style  string

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	width   int
	height  int
	ready   bool
	sending string
	status  string
	failed  bool
}

func newModel(ctx context.Context, gw *gateway.Gateway, toasts *gateway.ToastLog, label, style string) model {
	input := textarea.New()
	input.Placeholder = "Type a message, or /attach, /clear, /usage, /quit"
	input.ShowLineNumbers = false
	input.SetHeight(inputHeight)
	input.KeyMap.InsertNewline.SetEnabled(false)
	input.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot

	return model{
		ctx:      ctx,
		gw:       gw,
		toasts:   toasts,
		label:    label,
		style:    style,
		viewport: viewport.New(80, 20),
		input:    input,
		spinner:  s,
	}
}

func (m model) Init() tea.Cmd {
	return textarea.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}

	case replyMsg:
		m.sending = ""
		m.setStatus(msg.err)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.sending == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if m.sending != "" {
		return m, nil
	}

	if c, ok := parseCommand(text); ok {
		m.input.Reset()
		out, err := execute(m.ctx, m.gw, c)
		if errors.Is(err, errQuit) {
			return m, tea.Quit
		}
		m.toasts.Drain()
		if err != nil {
			m.status, m.failed = err.Error(), true
		} else {
			m.status, m.failed = out, false
		}
		m.refresh()
		return m, nil
	}

	if text == "" && len(m.gw.Pending()) == 0 {
		return m, nil
	}

	m.input.Reset()
	m.sending = text
	m.status = ""
	m.refresh()
	return m, tea.Batch(m.spinner.Tick, m.send(text))
}

func (m model) send(text string) tea.Cmd {
	ctx, gw := m.ctx, m.gw
	return func() tea.Msg {
		reply, err := gw.Send(ctx, text)
		return replyMsg{reply: reply, err: err}
	}
}

// setStatus shows the last toast, or err when the send itself failed.
func (m *model) setStatus(err error) {
	if err != nil {
		m.status, m.failed = err.Error(), true
		return
	}
	toasts := m.toasts.Drain()
	if len(toasts) == 0 {
		m.status, m.failed = "", false
		return
	}
	t := toasts[len(toasts)-1]
	m.status = t.Title
	if t.Description != "" {
		m.status += " " + t.Description
	}
	m.failed = t.Destructive
}

func (m *model) resize(width, height int) {
	m.width, m.height = width, height
	m.input.SetWidth(width)

	// header, status line and the input box with its border
	vpHeight := height - inputHeight - 4
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = width
	m.viewport.Height = vpHeight

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err == nil {
		m.renderer = r
	}
	m.ready = true
}

func (m *model) refresh() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m model) transcript() string {
	var b strings.Builder
	for _, msg := range m.gw.Messages() {
		writeMessage(&b, m.renderer, msg.Role, msg.Content, msg.Attachments)
	}
	if m.sending != "" {
		writeMessage(&b, m.renderer, llm.RoleUser, m.sending, m.gw.Pending())
	}
	if b.Len() == 0 {
		return mutedStyle.Render("No messages yet.")
	}
	return b.String()
}

func writeMessage(b *strings.Builder, r *glamour.TermRenderer, role llm.Role, content string, attachments []llm.Attachment) {
	if role == llm.RoleUser {
		b.WriteString(userStyle.Render("You"))
	} else {
		b.WriteString(assistantStyle.Render("Assistant"))
	}
	b.WriteString("\n")

	for _, a := range attachments {
		b.WriteString(mutedStyle.Render("📎 " + a.Name))
		b.WriteString("\n")
	}

	body := content
	if r != nil && role == llm.RoleAssistant {
		if out, err := r.Render(content); err == nil {
			body = strings.TrimRight(out, "\n")
		}
	}
	b.WriteString(body)
	b.WriteString("\n\n")
}

func (m model) View() string {
	if !m.ready {
		return "Starting…"
	}

	header := titleStyle.Render("parley") + mutedStyle.Render(fmt.Sprintf("  %s  ·  %d tokens", m.label, m.gw.TotalTokens()))
	if k := m.gw.LastError(); k != provider.KindNone {
		header += "  " + errorStyle.Render(k.String())
	}

	status := m.status
	switch {
	case m.sending != "":
		status = m.spinner.View() + " Waiting for the model…"
	case m.failed:
		status = errorStyle.Render(status)
	default:
		status = mutedStyle.Render(status)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		ansi.Truncate(header, m.width, "…"),
		m.viewport.View(),
		ansi.Truncate(status, m.width, "…"),
		m.input.View(),
	)
}
