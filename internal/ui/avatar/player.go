package avatar

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/nova-companion/pkg/logger"
)

// ErrNoPlayer is returned by Play when no video program is installed.
var ErrNoPlayer = errors.New("no video player available")

// Player loops one avatar clip at a time.
type Player interface {
	// Play replaces the current clip with src, a path under /videos.
	Play(src string) error
	Stop()
}

// NopPlayer shows nothing; the avatar panel still renders its labels.
type NopPlayer struct{}

func (NopPlayer) Play(string) error { return nil }
func (NopPlayer) Stop() {}

// DefaultPlayerCommands lists the video programs probed, in order. The clip
// path is appended as the last argument.
func DefaultPlayerCommands() [][]string {
	return [][]string{
		{"mpv", "--loop-file=inf", "--no-audio", "--really-quiet", "--force-window=yes"},
		{"ffplay", "-loop", "0", "-an", "-loglevel", "quiet"},
	}
}

// PlayerOptions configures a CommandPlayer.
type PlayerOptions struct {
	// Command overrides the probed video programs.
	Command []string
	// Dir is the local directory that /videos/... paths resolve under.
	Dir    string
	Logger logrus.FieldLogger
	// LookPath resolves program names; exec.LookPath when nil.
	LookPath func(string) (string, error)
}

// CommandPlayer loops clips in an external video player process. The previous
// process is killed before the next clip starts.
type CommandPlayer struct {
	argv []string
	dir  string
	log  logrus.FieldLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCommandPlayer probes the video programs once.
func NewCommandPlayer(opts PlayerOptions) *CommandPlayer {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	p := &CommandPlayer{dir: opts.Dir, log: log.WithField("component", "avatar")}

	candidates := DefaultPlayerCommands()
	if len(opts.Command) > 0 {
		candidates = [][]string{opts.Command}
	}
	for _, candidate := range candidates {
		if _, err := lookPath(candidate[0]); err == nil {
			p.argv = append([]string(nil), candidate...)
			break
		}
	}
	if p.argv == nil {
		p.log.Info("no video player found, avatar clips will not be shown")
	}
	return p
}

// Enabled reports whether a video program was found.
func (p *CommandPlayer) Enabled() bool {
	return p.argv != nil
}

// Path resolves src against the video directory.
func (p *CommandPlayer) Path(src string) string {
	return filepath.Join(p.dir, filepath.FromSlash(strings.TrimPrefix(src, "/")))
}

// Play kills the running clip and starts src.
func (p *CommandPlayer) Play(src string) error {
	if p.argv == nil {
		return ErrNoPlayer
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	args := append(append([]string(nil), p.argv[1:]...), p.Path(src))
	cmd := exec.CommandContext(ctx, p.argv[0], args...)
	if err := cmd.Start(); err != nil {
		cancel()
		return err
	}

	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	go func() {
		defer close(done)
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			p.log.WithError(err).WithField("src", src).Debug("video player exited")
		}
		cancel()
	}()
	return nil
}

// Stop kills the running clip, if any.
func (p *CommandPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *CommandPlayer) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
}
