// Package avatar renders the companion's emotion and mode and keeps the
// matching idle clip playing.
package avatar

import (
	"path"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/nova-companion/internal/emotion"
)

// PlayedMsg reports the outcome of a playback restart. Failures are ignored.
type PlayedMsg struct {
	Src string
	Err error
}

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	clipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	emotionStyle = lipgloss.NewStyle().Bold(true)
	modeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	faces        = map[emotion.Emotion]string{
		emotion.Base:  "( ˘ ᵕ ˘ )",
		emotion.Happy: "( ˶ᵔ ᵕ ᵔ˶ )",
		emotion.Sad:   "( ╥ ﹏ ╥ )",
	}
)

// Model is the avatar presenter.
type Model struct {
	emotion emotion.Emotion
	mode    emotion.Mode
	src     string
	player  Player
	width   int
}

// New starts in the base idle state. A nil player selects NopPlayer.
func New(player Player) Model {
	if player == nil {
		player = NopPlayer{}
	}
	return Model{
		emotion: emotion.Base,
		mode:    emotion.Idle,
		src:     emotion.VideoForState(emotion.Base, emotion.Idle),
		player:  player,
		width:   36,
	}
}

// Init starts the first clip.
func (m Model) Init() tea.Cmd {
	return m.play(m.src)
}

// Update watches playback completions. Play commands run concurrently, so a
// completion for a clip that is no longer selected may land last; the selected
// clip is played again so the player ends on it. Failures are ignored.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if played, ok := msg.(PlayedMsg); ok && played.Src != m.src {
		return m, m.play(m.src)
	}
	return m, nil
}

// SetState switches emotion and mode and restarts playback when the clip changes.
func (m Model) SetState(e emotion.Emotion, mode emotion.Mode) (Model, tea.Cmd) {
	m.emotion = emotion.Resolve(string(e))
	m.mode = mode

	src := emotion.VideoForState(m.emotion, m.mode)
	if src == m.src {
		return m, nil
	}
	m.src = src
	return m, m.play(src)
}

// SetWidth sets the rendered width including the border.
func (m Model) SetWidth(width int) Model {
	if width > 0 {
		m.width = width
	}
	return m
}

// Source is the clip currently selected.
func (m Model) Source() string {
	return m.src
}

// Emotion is the emotion currently shown.
func (m Model) Emotion() emotion.Emotion {
	return m.emotion
}

// Mode is the mode currently shown.
func (m Model) Mode() emotion.Mode {
	return m.mode
}

func (m Model) play(src string) tea.Cmd {
	player := m.player
	return func() tea.Msg {
		return PlayedMsg{Src: src, Err: player.Play(src)}
	}
}

// View renders the face, the clip name and the status line.
func (m Model) View() string {
	inner := m.width - frameStyle.GetHorizontalFrameSize()
	if inner < 10 {
		inner = 10
	}

	face := lipgloss.PlaceHorizontal(inner, lipgloss.Center, faces[m.emotion])
	clip := lipgloss.PlaceHorizontal(inner, lipgloss.Center, clipStyle.Render(path.Base(m.src)))

	left := emotionStyle.Render(emotion.Label(m.emotion))
	right := modeStyle.Render(emotion.ModeLabel(m.mode))
	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	status := left + strings.Repeat(" ", gap) + right

	return frameStyle.Width(m.width - frameStyle.GetHorizontalBorderSize()).Render(lipgloss.JoinVertical(lipgloss.Left, "", face, "", clip, "", status))
}
