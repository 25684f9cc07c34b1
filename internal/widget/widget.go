// Package widget renders a Conversation as a terminal chat window.
package widget

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"medibridge-assistant/internal/domain"
	"medibridge-assistant/internal/usecase"
)

const (
	Title = "MediBridge Assistant"

	defaultWidth  = 80
	defaultHeight = 24
	// header, status, input and help lines plus the frame border.
	chromeHeight = 7
)

// Conversation is the part of usecase.Engine the widget drives.
type Conversation interface {
	Open()
	Close()
	IsOpen() bool
	SubmitChoice(ctx context.Context, label string) (domain.Turn, error)
	History() []domain.Turn
	State() usecase.State
}

// ReplyMsg carries the outcome of one submission back into Update.
type ReplyMsg struct {
	Label string
	Turn  domain.Turn
	Err   error
}

// choice is one clickable option, addressed by the turn that offered it.
type choice struct {
	turn  int
	label string
}

type Model struct {
	ctx    context.Context
	conv   Conversation
	logger zerolog.Logger

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	choices  []choice
	selected int
	inFlight int
	status   string

	// newestBot is the history index of the latest bot turn, -1 before any.
	newestBot int

	width  int
	height int
}

type Option func(*Model)

func WithLogger(l zerolog.Logger) Option {
	return func(m *Model) {
		m.logger = l
	}
}

// WithOpen starts the widget already open, as if ctrl+o had been pressed.
func WithOpen() Option {
	return func(m *Model) {
		m.conv.Open()
	}
}

func New(ctx context.Context, conv Conversation, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message or pick an option"
	ti.Prompt = "› "
	ti.CharLimit = 500
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

	m := Model{
		ctx:       ctx,
		conv:      conv,
		logger:    zerolog.Nop(),
		input:     ti,
		viewport:  viewport.New(defaultWidth-2, defaultHeight-chromeHeight),
		spinner:   sp,
		selected:  -1,
		newestBot: -1,
		width:     defaultWidth,
		height:    defaultHeight,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = max(msg.Width-2, 10)
		m.viewport.Height = max(msg.Height-chromeHeight, 3)
		m.input.Width = max(msg.Width-6, 10)
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "ctrl+o":
			if m.conv.IsOpen() {
				m.conv.Close()
			} else {
				m.conv.Open()
			}
			m.status = ""
			m.refresh()
			return m, nil
		}
		if !m.conv.IsOpen() {
			return m, nil
		}

		switch msg.String() {
		case "tab":
			m.moveSelection(1)
			return m, nil
		case "shift+tab":
			m.moveSelection(-1)
			return m, nil
		case "left", "right":
			if m.input.Value() == "" {
				if msg.String() == "right" {
					m.moveSelection(1)
				} else {
					m.moveSelection(-1)
				}
				return m, nil
			}
		case "enter":
			label := strings.TrimSpace(m.input.Value())
			if label == "" {
				label = m.selectedLabel()
			}
			if label == "" {
				return m, nil
			}
			m.input.Reset()
			m.status = ""
			m.inFlight++
			return m, tea.Batch(m.submit(label), m.spinner.Tick)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)

	case ReplyMsg:
		if m.inFlight > 0 {
			m.inFlight--
		}
		if msg.Err != nil {
			m.status = msg.Err.Error()
		}
		m.refresh()

	case spinner.TickMsg:
		if m.inFlight > 0 {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		// Another submission may have appended turns; selection survives.
		m.refresh()

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// submit runs one SubmitChoice off the event loop. Several may run at once.
func (m Model) submit(label string) tea.Cmd {
	ctx, conv, logger := m.ctx, m.conv, m.logger
	return func() tea.Msg {
		turn, err := conv.SubmitChoice(ctx, label)
		if err != nil {
			logger.Warn().Err(err).Str("label", label).Msg("submission rejected")
		}
		return ReplyMsg{Label: label, Turn: turn, Err: err}
	}
}

func (m *Model) moveSelection(delta int) {
	n := len(m.choices)
	if n == 0 {
		return
	}
	if m.selected < 0 {
		m.selected = 0
		if delta < 0 {
			m.selected = n - 1
		}
		return
	}
	m.selected = ((m.selected+delta)%n + n) % n
}

func (m Model) selectedLabel() string {
	if m.selected < 0 || m.selected >= len(m.choices) {
		return ""
	}
	return m.choices[m.selected].label
}

// refresh rebuilds the option list and transcript from the conversation.
// The selection moves only when a new bot turn arrives: to its first option,
// or to nothing when that turn is a leaf.
func (m *Model) refresh() {
	history := m.conv.History()

	m.choices = nil
	newestBot, newestFirst := -1, -1
	for i, t := range history {
		if t.Sender != domain.SenderBot {
			continue
		}
		newestBot, newestFirst = i, -1
		for j, label := range t.Options {
			if j == 0 {
				newestFirst = len(m.choices)
			}
			m.choices = append(m.choices, choice{turn: i, label: label})
		}
	}

	if newestBot != m.newestBot || m.selected >= len(m.choices) {
		m.newestBot = newestBot
		m.selected = newestFirst
	}

	m.viewport.SetContent(m.transcript(history))
	m.viewport.GotoBottom()
}

func (m Model) transcript(history []domain.Turn) string {
	wrap := lipgloss.NewStyle().Width(max(m.viewport.Width-2, 10))

	var b strings.Builder
	next := 0
	for i, t := range history {
		if i > 0 {
			b.WriteString("\n")
		}
		who := botStyle.Render("Assistant")
		if t.Sender == domain.SenderUser {
			who = userStyle.Render("You")
		}
		b.WriteString(wrap.Render(fmt.Sprintf("%s: %s", who, t.Text)))
		b.WriteString("\n")

		if t.Sender != domain.SenderBot || len(t.Options) == 0 {
			continue
		}
		buttons := make([]string, 0, len(t.Options))
		for _, label := range t.Options {
			style := optionStyle
			if next == m.selected {
				style = selectedOptionStyle
			}
			buttons = append(buttons, style.Render(label))
			next++
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, buttons...))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) View() string {
	header := headerStyle.Width(max(m.width-2, 10)).Render("💬 " + Title)

	if !m.conv.IsOpen() {
		return lipgloss.JoinVertical(lipgloss.Left,
			header,
			hintStyle.Render("Press ctrl+o to open the chat, esc to quit."),
		)
	}

	var status string
	switch {
	case m.status != "":
		status = statusStyle.Render(m.status)
	case m.conv.State() == usecase.StatePending:
		status = m.spinner.View() + " waiting for reply"
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		status,
		m.input.View(),
		hintStyle.Render("enter send · tab/shift+tab choose · ctrl+o close · esc quit"),
	)
	return frameStyle.Render(body)
}
