package ui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/nova-companion/internal/emotion"
	"github.com/zhouzirui/nova-companion/internal/model/chat"
	"github.com/zhouzirui/nova-companion/internal/orchestrator"
)

type nopController struct{}

func (nopController) SetInput(string) {}
func (nopController) SendMessage(...string) bool { return true }
func (nopController) StartRecording(context.Context) bool { return true }
func (nopController) StopRecording() {}

type countingPlayer struct{ srcs []string }

func (p *countingPlayer) Play(src string) error {
	p.srcs = append(p.srcs, src)
	return nil
}

func (p *countingPlayer) Stop() {}

func newModel(player *countingPlayer) Model {
	return New(context.Background(), Options{
		Controller: nopController{},
		Player:     player,
		Initial:    orchestrator.State{Emotion: emotion.Base, Mode: emotion.Idle, VoiceSupported: true},
	})
}

func TestQuitKeys(t *testing.T) {
	m := newModel(&countingPlayer{})

	for _, k := range []tea.KeyMsg{{Type: tea.KeyCtrlC}, {Type: tea.KeyEsc}} {
		_, cmd := m.Update(k)
		require.NotNil(t, cmd)
		assert.Equal(t, tea.Quit(), cmd())
	}
}

func TestStateMsgReachesBothPanels(t *testing.T) {
	player := &countingPlayer{}
	m := newModel(player)

	state := orchestrator.State{
		Emotion: emotion.Happy,
		Mode:    emotion.Talking,
		Messages: []chat.Message{
			{ID: "1", Role: chat.RoleUser, Content: "안녕"},
			{ID: "2", Role: chat.RoleAssistant, Content: "안녕하세요", Emotion: emotion.Happy},
		},
		VoiceSupported: true,
	}

	next, cmd := m.Update(StateMsg{State: state})
	require.NotNil(t, cmd, "clip changed")
	played := cmd()
	next, _ = next.Update(played)

	view := next.View()
	assert.Contains(t, view, "안녕하세요")
	assert.Contains(t, view, "대화 중")
	assert.Contains(t, view, "happy_idle.mp4")
	assert.Equal(t, []string{"/videos/happy_idle.mp4"}, player.srcs)
}

func TestLayoutFollowsWidth(t *testing.T) {
	m := newModel(&countingPlayer{})

	wide, _ := m.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	assert.True(t, wide.(Model).Wide())

	narrow, _ := m.Update(tea.WindowSizeMsg{Width: 70, Height: 50})
	assert.False(t, narrow.(Model).Wide())
	assert.NotEmpty(t, narrow.View())
}

func TestHelpToggle(t *testing.T) {
	m := newModel(&countingPlayer{})
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyF1})
	assert.True(t, next.(Model).help.ShowAll)
	assert.Contains(t, next.View(), "alt+enter")
}

func TestNotifierDropsUntilAttached(t *testing.T) {
	var n Notifier
	assert.NotPanics(t, func() { n.Notify(orchestrator.State{}) })
}
