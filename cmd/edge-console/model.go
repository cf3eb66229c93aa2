package main

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/satriahrh/edge-assistant/domain"
	"github.com/satriahrh/edge-assistant/usecase"
)

const (
	headerHeight = 4
	inputHeight  = 3
	statusHeight = 1
)

// viewFeed is the surface renderer of the TUI. It keeps only the latest
// view and wakes the program through a one slot channel, so renders never
// block the surface.
type viewFeed struct {
	latest atomic.Pointer[usecase.View]
	signal chan struct{}
}

func newViewFeed() *viewFeed {
	return &viewFeed{signal: make(chan struct{}, 1)}
}

func (f *viewFeed) Render(view usecase.View) {
	f.latest.Store(&view)
	select {
	case f.signal <- struct{}{}:
	default:
	}
}

func (f *viewFeed) wait() tea.Cmd {
	return func() tea.Msg {
		<-f.signal
		return viewMsg{view: *f.latest.Load()}
	}
}

type viewMsg struct {
	view usecase.View
}

// surface is what the model needs from a chat surface.
type surface interface {
	Mount(ctx context.Context)
	Submit(ctx context.Context, input string) error
	View() usecase.View
}

type model struct {
	ctx     context.Context
	surface surface
	feed    *viewFeed
	email   string

	view     usecase.View
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	markdown *glamour.TermRenderer

	width  int
	height int
	ready  bool
	notice string
}

func newModel(ctx context.Context, s surface, feed *viewFeed, email string) model {
	ti := textinput.New()
	ti.CharLimit = 4000
	ti.Prompt = "› "
	ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(colorTextDim)
	ti.TextStyle = lipgloss.NewStyle().Foreground(colorText)

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = loadingStyle

	return model{
		ctx:     ctx,
		surface: s,
		feed:    feed,
		email:   email,
		view:    s.View(),
		input:   ti,
		spinner: sp,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.feed.wait(),
		m.mount(),
	)
}

func (m model) mount() tea.Cmd {
	return func() tea.Msg {
		m.surface.Mount(m.ctx)
		return nil
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.updateViewport()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			input := m.input.Value()
			if trimmed := strings.TrimSpace(input); trimmed == "/exit" || trimmed == "/quit" {
				return m, tea.Quit
			}
			err := m.surface.Submit(m.ctx, input)
			if err == nil {
				// The sending view may be coalesced away by a fast reply.
				m.input.Reset()
			}
			m.notice = submitNotice(err)
			return m, nil
		}

	case viewMsg:
		previous := m.view.State
		m.apply(msg.view)
		cmds = append(cmds, m.feed.wait())
		if m.view.State == usecase.StateSending && previous != usecase.StateSending {
			cmds = append(cmds, m.spinner.Tick)
		}

	case spinner.TickMsg:
		if m.view.State == usecase.StateSending || m.view.State == usecase.StateLoading {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	if key, ok := msg.(tea.KeyMsg); ok && m.view.InputEnabled {
		m.input, cmd = m.input.Update(key)
		cmds = append(cmds, cmd)
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// apply adopts view unless a newer one is already shown.
func (m *model) apply(view usecase.View) {
	if view.Revision < m.view.Revision {
		return
	}
	m.view = view
	m.input.Placeholder = view.Placeholder
	if view.ClearInput {
		m.input.Reset()
		m.notice = ""
	}
	if view.InputEnabled {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
	m.updateViewport()
	m.viewport.GotoBottom()
}

func submitNotice(err error) string {
	switch {
	case err == nil, errors.Is(err, usecase.ErrEmptyInput):
		return ""
	case errors.Is(err, usecase.ErrBusy):
		return "Still waiting for the previous reply."
	case errors.Is(err, usecase.ErrUnavailable):
		return "This assistant is not available."
	default:
		return err.Error()
	}
}

func (m *model) resize() {
	contentWidth := max(m.width-4, 20)
	vpHeight := max(m.height-headerHeight-inputHeight-statusHeight-4, 5)

	if !m.ready {
		m.viewport = viewport.New(contentWidth, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = contentWidth
		m.viewport.Height = vpHeight
	}
	m.input.Width = contentWidth - 6

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(contentWidth-6),
		glamour.WithEmoji(),
	)
	if err == nil {
		m.markdown = renderer
	}
}

func (m *model) updateViewport() {
	if !m.ready {
		return
	}

	var content strings.Builder
	for i, msg := range m.view.Messages {
		if i > 0 {
			content.WriteString("\n")
		}
		switch msg.Role {
		case domain.UserRole:
			content.WriteString(userLabelStyle.Render("● You") + "\n")
			content.WriteString(userBubbleStyle.Width(m.viewport.Width-4).Render(msg.Content))
		default:
			content.WriteString(assistantLabelStyle.Render("✦ "+m.view.Title) + "\n")
			content.WriteString(m.renderMarkdown(msg.Content))
		}
		content.WriteString("\n")
	}
	m.viewport.SetContent(content.String())
}

func (m *model) renderMarkdown(text string) string {
	if m.markdown == nil {
		return text
	}
	rendered, err := m.markdown.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}

func (m model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	header := headerStyle.Width(m.viewport.Width).Render(
		titleStyle.Render(m.view.Title) + "\n" + subtitleStyle.Render(m.view.Description),
	)

	var body string
	switch m.view.State {
	case usecase.StateLoading:
		body = noticeStyle.Render(m.spinner.View() + " " + m.view.Notice)
	case usecase.StateDenied:
		body = noticeStyle.Render(m.view.Notice)
	default:
		body = m.viewport.View()
	}
	body = messagesAreaStyle.Width(m.viewport.Width).Height(m.viewport.Height).Render(body)

	sections := []string{header, body}
	if m.view.ShowInput {
		sections = append(sections, inputPanelStyle.Width(m.viewport.Width).Render(m.input.View()))
	}
	sections = append(sections, m.statusBar())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m model) statusBar() string {
	parts := []string{m.email}
	switch {
	case m.notice != "":
		parts = append(parts, m.notice)
	case m.view.State == usecase.StateSending:
		parts = append(parts, m.spinner.View()+" waiting for reply")
	}
	parts = append(parts, "esc to quit")
	return statusBarStyle.Render(strings.Join(parts, " · "))
}
