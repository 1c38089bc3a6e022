// Package tts reads assistant replies aloud through a local synthesis program.
package tts

import (
	"context"
	"os/exec"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/nova-companion/pkg/logger"
)

// DefaultLanguage is the language tag utterances are spoken in.
const DefaultLanguage = "ko-KR"

// macOS voices keyed by primary language tag.
var macOSVoices = map[string]string{
	"ko": "Yuna",
	"en": "Samantha",
}

// CommandSpeaker runs one synthesis process per utterance. Starting a new
// utterance kills the previous one.
type CommandSpeaker struct {
	argv []string
	log  logrus.FieldLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// Options configures a CommandSpeaker.
type Options struct {
	// Command is the synthesis program and its leading arguments; the text
	// is appended as the last argument. Empty selects the first installed
	// candidate of DefaultCommands.
	Command  []string
	Language string
	Logger   logrus.FieldLogger
	// LookPath resolves program names; exec.LookPath when nil.
	LookPath func(string) (string, error)
}

// DefaultCommands lists the synthesis programs probed, in order.
func DefaultCommands(language string) [][]string {
	lang := primaryTag(language)
	cmds := [][]string{
		{"espeak-ng", "-v", lang},
		{"espeak", "-v", lang},
		{"spd-say", "-w", "-l", lang},
	}
	if voice, ok := macOSVoices[lang]; ok {
		cmds = append([][]string{{"say", "-v", voice}}, cmds...)
	}
	return cmds
}

// NewCommandSpeaker resolves the synthesis program. When none is installed
// the speaker stays silent.
func NewCommandSpeaker(opts Options) *CommandSpeaker {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	language := strings.TrimSpace(opts.Language)
	if language == "" {
		language = DefaultLanguage
	}

	s := &CommandSpeaker{log: log.WithField("component", "tts")}

	candidates := DefaultCommands(language)
	if len(opts.Command) > 0 {
		candidates = [][]string{opts.Command}
	}
	for _, candidate := range candidates {
		if _, err := lookPath(candidate[0]); err == nil {
			s.argv = append([]string(nil), candidate...)
			break
		}
	}

	if s.argv == nil {
		s.log.Info("no speech synthesis program found, replies will not be spoken")
	} else {
		s.log.WithField("command", s.argv[0]).Debug("speech synthesis enabled")
	}
	return s
}

// Enabled reports whether a synthesis program was found.
func (s *CommandSpeaker) Enabled() bool {
	return s.argv != nil
}

// Speak cancels any running utterance and starts speaking text. It never blocks
// on synthesis.
func (s *CommandSpeaker) Speak(text string) {
	text = strings.TrimSpace(text)
	if text == "" || s.argv == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	args := append(append([]string(nil), s.argv[1:]...), text)
	cmd := exec.CommandContext(ctx, s.argv[0], args...)
	if err := cmd.Start(); err != nil {
		cancel()
		s.log.WithError(err).Warn("failed to start speech synthesis")
		return
	}

	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go func() {
		defer close(done)
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			s.log.WithError(err).Debug("speech synthesis exited with error")
		}
		cancel()
	}()
}

// Stop interrupts the current utterance, if any, and waits for it to exit.
func (s *CommandSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Close stops speaking; later Speak calls are ignored.
func (s *CommandSpeaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopLocked()
	return nil
}

func (s *CommandSpeaker) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

func primaryTag(language string) string {
	tag, _, _ := strings.Cut(language, "-")
	return strings.ToLower(tag)
}
