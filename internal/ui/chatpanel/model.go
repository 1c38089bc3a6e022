// Package chatpanel renders the conversation and the input box and forwards
// user intent to the orchestrator.
package chatpanel

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/nova-companion/internal/emotion"
	"github.com/zhouzirui/nova-companion/internal/model/chat"
	"github.com/zhouzirui/nova-companion/internal/orchestrator"
)

const (
	emptyHint        = "Companion에게 먼저 말을 걸어보세요."
	placeholder      = "여기에 메시지를 입력하세요."
	voiceBadge       = "음성"
	hintNoVoice      = "이 환경은 음성 입력을 지원하지 않아요."
	hintRecording    = "녹음 중... (ctrl+r 말 끝내기)"
	hintLoading      = "응답 생성 중..."
	inputHeight      = 3
	maxInputChars    = 4000
	statusLineHeight = 2
)

var roleLabels = map[chat.Role]string{
	chat.RoleUser:      "나",
	chat.RoleAssistant: "Companion",
}

// Controller is the orchestrator surface the panel drives. Calls may block
// on the orchestrator, so the panel only makes them from commands.
type Controller interface {
	SetInput(text string)
	SendMessage(override ...string) bool
	StartRecording(ctx context.Context) bool
	StopRecording()
}

// SentMsg reports whether a submitted message was accepted.
type SentMsg struct {
	Text     string
	Accepted bool
}

// inputMirror orders the controller calls made by commands. Every edit and
// submit takes a new generation on the update goroutine; a SetInput whose
// generation is stale by the time it runs is dropped, so the controller never
// sees keystrokes out of order or after the send that consumed them.
type inputMirror struct {
	gen atomic.Uint64
	mu  sync.Mutex
}

func (im *inputMirror) next() uint64 {
	return im.gen.Add(1)
}

func (im *inputMirror) setInput(ctrl Controller, gen uint64, text string) {
	im.mu.Lock()
	defer im.mu.Unlock()
	if im.gen.Load() != gen {
		return
	}
	ctrl.SetInput(text)
}

func (im *inputMirror) send(ctrl Controller, text string) bool {
	im.mu.Lock()
	defer im.mu.Unlock()
	return ctrl.SendMessage(text)
}

// Model is the chat presenter.
type Model struct {
	ctrl     Controller
	mirror   *inputMirror
	ctx      context.Context
	state    orchestrator.State
	keys     KeyMap
	styles   styles
	viewport viewport.Model
	input    textarea.Model
	width    int
	height   int
}

// New builds the panel around ctrl. ctx bounds microphone requests.
func New(ctx context.Context, ctrl Controller, initial orchestrator.State) Model {
	ta := textarea.New()
	ta.Placeholder = placeholder
	ta.ShowLineNumbers = false
	ta.CharLimit = maxInputChars
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter")
	ta.Focus()

	m := Model{
		ctrl:     ctrl,
		mirror:   &inputMirror{},
		ctx:      ctx,
		keys:     DefaultKeyMap(),
		styles:   defaultStyles(),
		viewport: viewport.New(60, 16),
		input:    ta,
	}
	m = m.SetSize(64, 24)
	m.state = initial
	m.input.SetValue(initial.Input)
	m.refresh()
	return m
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// SetState renders a new orchestrator snapshot.
func (m Model) SetState(state orchestrator.State) Model {
	atBottom := m.viewport.AtBottom()
	grew := len(state.Messages) != len(m.state.Messages)
	m.state = state

	if state.Loading {
		m.input.Blur()
	} else if !m.input.Focused() {
		m.input.Focus()
	}

	m.refresh()
	if grew || atBottom {
		m.viewport.GotoBottom()
	}
	return m
}

// State is the snapshot currently rendered.
func (m Model) State() orchestrator.State {
	return m.state
}

// Input is the text in the input box.
func (m Model) Input() string {
	return m.input.Value()
}

// Keys exposes the bindings for the help line.
func (m Model) Keys() KeyMap {
	return m.keys
}

// SetSize lays the panel out in width x height cells including its border.
func (m Model) SetSize(width, height int) Model {
	m.width, m.height = width, height

	inner := width - m.styles.frame.GetHorizontalFrameSize()
	if inner < 10 {
		inner = 10
	}
	m.input.SetWidth(inner)
	m.viewport.Width = inner

	vh := height - m.styles.frame.GetVerticalFrameSize() - inputHeight - statusLineHeight - 1
	if vh < 3 {
		vh = 3
	}
	m.viewport.Height = vh
	m.refresh()
	return m
}

// Update handles keys and send results.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case SentMsg:
		if !msg.Accepted && m.input.Value() == "" {
			m.input.SetValue(msg.Text)
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Send):
			return m.submit()
		case key.Matches(msg, m.keys.Record):
			return m, m.toggleRecording()
		case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Down):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		if m.state.Loading {
			return m, nil
		}

		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if after := m.input.Value(); after != before {
			return m, tea.Batch(cmd, m.setInput(after))
		}
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (Model, tea.Cmd) {
	text := m.input.Value()
	if !orchestrator.ReadyToSend(text, m.state.Loading) {
		return m, nil
	}
	m.input.Reset()
	m.mirror.next()

	ctrl, mirror := m.ctrl, m.mirror
	return m, func() tea.Msg {
		return SentMsg{Text: text, Accepted: mirror.send(ctrl, text)}
	}
}

func (m Model) setInput(text string) tea.Cmd {
	ctrl, mirror := m.ctrl, m.mirror
	gen := mirror.next()
	return func() tea.Msg {
		mirror.setInput(ctrl, gen, text)
		return nil
	}
}

func (m Model) toggleRecording() tea.Cmd {
	ctrl := m.ctrl
	if m.state.Recording {
		return func() tea.Msg {
			ctrl.StopRecording()
			return nil
		}
	}
	if !m.state.VoiceSupported || m.state.Loading {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		ctrl.StartRecording(ctx)
		return nil
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderMessages())
}

func (m Model) renderMessages() string {
	if len(m.state.Messages) == 0 {
		return m.styles.hint.Width(m.viewport.Width).Align(lipgloss.Center).Render(emptyHint)
	}

	blocks := make([]string, 0, len(m.state.Messages))
	for _, msg := range m.state.Messages {
		blocks = append(blocks, m.renderMessage(msg))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderMessage(msg chat.Message) string {
	label := roleLabels[msg.Role]
	style := m.styles.assistant
	if msg.Role == chat.RoleUser {
		style = m.styles.user
	}

	header := style.Render(label)
	if msg.Origin == chat.OriginVoice {
		header += " " + m.styles.badge.Render(voiceBadge)
	}
	if msg.Emotion != "" {
		tag := m.styles.emotion.Render(emotion.Label(msg.Emotion))
		gap := m.viewport.Width - lipgloss.Width(header) - lipgloss.Width(tag)
		if gap < 1 {
			gap = 1
		}
		header += strings.Repeat(" ", gap) + tag
	}

	body := m.styles.body.Width(m.viewport.Width).Render(msg.Content)
	return header + "\n" + body
}

func (m Model) statusLine() string {
	var hints []string
	if !m.state.VoiceSupported {
		hints = append(hints, m.styles.hint.Render(hintNoVoice))
	}
	if m.state.Recording {
		hints = append(hints, m.styles.recording.Render(hintRecording))
	}
	if m.state.Loading {
		hints = append(hints, m.styles.hint.Render(hintLoading))
	}
	return strings.Join(hints, "  ")
}

// View renders messages, the error line, the input and the status hints.
func (m Model) View() string {
	sections := []string{m.viewport.View()}
	if m.state.Error != "" {
		sections = append(sections, m.styles.error.Width(m.viewport.Width).Render(m.state.Error))
	} else {
		sections = append(sections, "")
	}
	sections = append(sections, m.input.View(), m.statusLine())

	return m.styles.frame.Width(m.width - m.styles.frame.GetHorizontalBorderSize()).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}
