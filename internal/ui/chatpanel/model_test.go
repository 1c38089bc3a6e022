package chatpanel

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/nova-companion/internal/emotion"
	"github.com/zhouzirui/nova-companion/internal/model/chat"
	"github.com/zhouzirui/nova-companion/internal/orchestrator"
)

type fakeController struct {
	mu      sync.Mutex
	inputs  []string
	sent    []string
	reject  bool
	started int
	stopped int
}

func (f *fakeController) SetInput(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, text)
}

func (f *fakeController) SendMessage(override ...string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, override...)
	return !f.reject
}

func (f *fakeController) StartRecording(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	return true
}

func (f *fakeController) StopRecording() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
}

func (f *fakeController) lastInput() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return ""
	}
	return f.inputs[len(f.inputs)-1]
}

// fire runs cmd and any batched children in the background; cursor blink
// commands sleep, so nothing waits on them.
func fire(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	go func() {
		if batch, ok := cmd().(tea.BatchMsg); ok {
			for _, c := range batch {
				fire(c)
			}
		}
	}()
}

func idleState() orchestrator.State {
	return orchestrator.State{Emotion: emotion.Base, Mode: emotion.Idle, VoiceSupported: true}
}

func typeText(m Model, text string) (Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func TestEmptyConversationShowsHint(t *testing.T) {
	m := New(context.Background(), &fakeController{}, idleState())
	assert.Contains(t, m.View(), emptyHint)
}

func TestTypingForwardsInput(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, idleState())

	m, cmd := typeText(m, "안녕")
	fire(cmd)

	assert.Equal(t, "안녕", m.Input())
	require.Eventually(t, func() bool { return ctrl.lastInput() == "안녕" }, time.Second, 5*time.Millisecond)
}

func (f *fakeController) calls() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...), append([]string(nil), f.sent...)
}

func TestInputSyncDropsStaleEdits(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, idleState())

	edits := []tea.Cmd{m.setInput("a"), m.setInput("ab"), m.setInput("abc")}
	for i := len(edits) - 1; i >= 0; i-- {
		edits[i]()
	}

	inputs, _ := ctrl.calls()
	assert.Equal(t, []string{"abc"}, inputs)
}

func TestInputSyncNeverFollowsSend(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, idleState())
	m, _ = typeText(m, "hi")

	edit := m.setInput("hi")
	m, send := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, send)

	assert.Equal(t, SentMsg{Text: "hi", Accepted: true}, send())
	edit()

	inputs, sent := ctrl.calls()
	assert.Empty(t, inputs, "an edit scheduled before the send must not repopulate input")
	assert.Equal(t, []string{"hi"}, sent)
	assert.Empty(t, m.Input())
}

func TestEnterSendsAndClearsInput(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, idleState())
	m, _ = typeText(m, "안녕")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Empty(t, m.Input())

	msg := cmd()
	assert.Equal(t, SentMsg{Text: "안녕", Accepted: true}, msg)
	assert.Equal(t, []string{"안녕"}, ctrl.sent)
}

func TestEnterIgnoredWhenNotReady(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, idleState())

	m, _ = typeText(m, "   ")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "blank input")

	m = New(context.Background(), ctrl, idleState())
	m, _ = typeText(m, "hi")
	loading := idleState()
	loading.Loading = true
	m = m.SetState(loading)

	m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "loading")
	m, _ = typeText(m, "x")
	assert.Equal(t, "hi", m.Input(), "input is disabled while loading")
	assert.Empty(t, ctrl.sent)
}

func TestRejectedSendRestoresText(t *testing.T) {
	ctrl := &fakeController{reject: true}
	m := New(context.Background(), ctrl, idleState())
	m, _ = typeText(m, "hello")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())

	assert.Equal(t, "hello", m.Input())
}

func TestRecordToggle(t *testing.T) {
	ctrl := &fakeController{}
	m := New(context.Background(), ctrl, idleState())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, 1, ctrl.started)

	recording := idleState()
	recording.Recording = true
	m = m.SetState(recording)
	assert.Contains(t, m.View(), hintRecording)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, 1, ctrl.stopped)

	unsupported := idleState()
	unsupported.VoiceSupported = false
	m = m.SetState(unsupported)
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), hintNoVoice)
}

func TestViewRendersConversation(t *testing.T) {
	state := idleState()
	state.Messages = []chat.Message{
		{ID: "1", Role: chat.RoleUser, Content: "오늘 힘들었어", Origin: chat.OriginVoice},
		{ID: "2", Role: chat.RoleAssistant, Content: "토닥토닥", Emotion: emotion.Sad},
	}
	state.Error = "동행 에이전트가 응답하지 않았어요."

	m := New(context.Background(), &fakeController{}, idleState()).SetSize(80, 30).SetState(state)
	view := m.View()

	for _, want := range []string{"나", voiceBadge, "오늘 힘들었어", "Companion", "슬픔", "토닥토닥", state.Error} {
		assert.Contains(t, view, want)
	}
	assert.NotContains(t, view, emptyHint)
}
