package tts

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookOnly(names ...string) func(string) (string, error) {
	return func(name string) (string, error) {
		for _, n := range names {
			if n == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
}

func TestDefaultCommandsPreferSayForKnownLanguages(t *testing.T) {
	cmds := DefaultCommands("ko-KR")
	require.NotEmpty(t, cmds)
	assert.Equal(t, []string{"say", "-v", "Yuna"}, cmds[0])
	assert.Contains(t, cmds, []string{"espeak-ng", "-v", "ko"})

	for _, cmd := range DefaultCommands("ja-JP") {
		assert.NotEqual(t, "say", cmd[0])
	}
}

func TestNewCommandSpeakerPicksFirstInstalled(t *testing.T) {
	s := NewCommandSpeaker(Options{LookPath: lookOnly("espeak", "spd-say")})
	require.True(t, s.Enabled())
	assert.Equal(t, []string{"espeak", "-v", "ko"}, s.argv)
}

func TestNewCommandSpeakerWithoutProgramIsSilent(t *testing.T) {
	s := NewCommandSpeaker(Options{LookPath: lookOnly()})
	assert.False(t, s.Enabled())

	s.Speak("안녕하세요")
	assert.NoError(t, s.Close())
}

func TestSpeakRunsConfiguredCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "spoken.txt")
	s := NewCommandSpeaker(Options{
		Command: []string{"sh", "-c", `printf '%s\n' "$0" >> "` + out + `"`},
	})
	require.True(t, s.Enabled())

	s.Speak("  안녕하세요  ")
	s.Speak("")

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(out)
		return err == nil && strings.TrimSpace(string(data)) == "안녕하세요"
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Close())
}

func TestSpeakInterruptsPreviousUtterance(t *testing.T) {
	s := NewCommandSpeaker(Options{Command: []string{"sleep"}})
	require.True(t, s.Enabled())

	s.Speak("30")
	s.mu.Lock()
	first := s.done
	s.mu.Unlock()
	require.NotNil(t, first)

	s.Speak("30")
	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("previous utterance was not interrupted")
	}

	require.NoError(t, s.Close())
	s.mu.Lock()
	assert.Nil(t, s.done)
	s.mu.Unlock()

	s.Speak("30")
	s.mu.Lock()
	assert.Nil(t, s.done, "speak after close must be ignored")
	s.mu.Unlock()
}
