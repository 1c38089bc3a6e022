// Package ui composes the avatar and chat presenters into the companion's
// terminal application.
package ui

import (
	"context"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/nova-companion/internal/orchestrator"
	"github.com/zhouzirui/nova-companion/internal/ui/avatar"
	"github.com/zhouzirui/nova-companion/internal/ui/chatpanel"
)

// wideLayout is the terminal width from which the panels sit side by side.
const wideLayout = 100

// StateMsg carries an orchestrator snapshot into the program.
type StateMsg struct {
	State orchestrator.State
}

// KeyMap binds the application-level keys.
type KeyMap struct {
	Quit key.Binding
	Help key.Binding
	chat chatpanel.KeyMap
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.chat.Send, k.chat.Record, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.chat.Send, k.chat.Newline, k.chat.Record},
		{k.chat.Up, k.chat.Down},
		{k.Help, k.Quit},
	}
}

func defaultKeyMap(chat chatpanel.KeyMap) KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("esc", "종료"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+_", "f1"),
			key.WithHelp("f1", "도움말"),
		),
		chat: chat,
	}
}

var titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1)

// Model is the root bubbletea model.
type Model struct {
	title  string
	avatar avatar.Model
	chat   chatpanel.Model
	keys   KeyMap
	help   help.Model
	width  int
	height int
}

// Options configures the application model.
type Options struct {
	Title      string
	Controller chatpanel.Controller
	Player     avatar.Player
	Initial    orchestrator.State
}

// New builds the root model. ctx bounds microphone requests.
func New(ctx context.Context, opts Options) Model {
	title := opts.Title
	if title == "" {
		title = "Companion"
	}

	chat := chatpanel.New(ctx, opts.Controller, opts.Initial)
	av := avatar.New(opts.Player)
	av, _ = av.SetState(opts.Initial.Emotion, opts.Initial.Mode)

	return Model{
		title:  title,
		avatar: av,
		chat:   chat,
		keys:   defaultKeyMap(chat.Keys()),
		help:   help.New(),
	}
}

// Init starts the avatar clip and the input cursor.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.avatar.Init(), m.chat.Init())
}

// Update routes messages to the presenters.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m = m.layout()
		return m, nil

	case StateMsg:
		var cmd tea.Cmd
		m.avatar, cmd = m.avatar.SetState(msg.State.Emotion, msg.State.Mode)
		m.chat = m.chat.SetState(msg.State)
		return m, cmd

	case avatar.PlayedMsg:
		var cmd tea.Cmd
		m.avatar, cmd = m.avatar.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			m = m.layout()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.chat, cmd = m.chat.Update(msg)
	return m, cmd
}

// Wide reports whether the panels are laid out side by side.
func (m Model) Wide() bool {
	return m.width >= wideLayout
}

func (m Model) layout() Model {
	if m.width == 0 || m.height == 0 {
		return m
	}
	m.help.Width = m.width

	body := m.height - lipgloss.Height(titleStyle.Render(m.title)) - lipgloss.Height(m.help.View(m.keys))
	if m.Wide() {
		avatarWidth := m.width * 2 / 5
		m.avatar = m.avatar.SetWidth(avatarWidth)
		m.chat = m.chat.SetSize(m.width-avatarWidth, body)
		return m
	}

	m.avatar = m.avatar.SetWidth(m.width)
	m.chat = m.chat.SetSize(m.width, body-lipgloss.Height(m.avatar.View()))
	return m
}

// View renders the title, both panels and the help line.
func (m Model) View() string {
	var panels string
	if m.Wide() {
		panels = lipgloss.JoinHorizontal(lipgloss.Top, m.avatar.View(), m.chat.View())
	} else {
		panels = lipgloss.JoinVertical(lipgloss.Left, m.avatar.View(), m.chat.View())
	}
	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(m.title), panels, m.help.View(m.keys))
}

// Notifier forwards orchestrator snapshots into a running program. Snapshots
// published before Attach are dropped; the program starts from State().
type Notifier struct {
	mu      sync.RWMutex
	program *tea.Program
}

// Attach starts forwarding to p.
func (n *Notifier) Attach(p *tea.Program) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.program = p
}

// Notify is suitable as orchestrator.Options.OnChange.
func (n *Notifier) Notify(state orchestrator.State) {
	n.mu.RLock()
	p := n.program
	n.mu.RUnlock()
	if p != nil {
		p.Send(StateMsg{State: state})
	}
}
