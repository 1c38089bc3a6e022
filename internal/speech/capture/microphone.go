// Package capture records microphone audio through an external program that
// writes a WAV stream to stdout.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/nova-companion/internal/orchestrator"
	"github.com/zhouzirui/nova-companion/pkg/logger"
)

const (
	// DefaultMimeType describes the stream the default commands produce.
	DefaultMimeType  = "audio/wav"
	defaultChunkSize = 8 << 10
	stopGrace        = 2 * time.Second
)

var (
	// ErrUnavailable is returned by Open when no capture program is installed.
	ErrUnavailable = errors.New("no audio capture program available")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("recorder already started")
)

// DefaultCommands lists the capture programs probed, in order. Each writes
// 16 kHz mono 16-bit WAV to stdout until interrupted.
func DefaultCommands() [][]string {
	ffmpegInput := []string{"-f", "pulse", "-i", "default"}
	if runtime.GOOS == "darwin" {
		ffmpegInput = []string{"-f", "avfoundation", "-i", ":0"}
	}

	ffmpeg := append([]string{"ffmpeg", "-hide_banner", "-loglevel", "error"}, ffmpegInput...)
	ffmpeg = append(ffmpeg, "-ac", "1", "-ar", "16000", "-f", "wav", "-")

	return [][]string{
		{"arecord", "-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-t", "wav", "-"},
		{"sox", "-q", "-d", "-t", "wav", "-r", "16000", "-c", "1", "-b", "16", "-"},
		ffmpeg,
	}
}

// Options configures a CommandMicrophone.
type Options struct {
	// Command overrides the probed capture programs.
	Command   []string
	MimeType  string
	ChunkSize int
	Logger    logrus.FieldLogger
	// LookPath resolves program names; exec.LookPath when nil.
	LookPath func(string) (string, error)
}

// CommandMicrophone opens one capture process per recording.
type CommandMicrophone struct {
	argv      []string
	mimeType  string
	chunkSize int
	log       logrus.FieldLogger
}

// NewCommandMicrophone probes the capture programs once.
func NewCommandMicrophone(opts Options) *CommandMicrophone {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	m := &CommandMicrophone{
		mimeType:  strings.TrimSpace(opts.MimeType),
		chunkSize: opts.ChunkSize,
		log:       log.WithField("component", "capture"),
	}
	if m.mimeType == "" {
		m.mimeType = DefaultMimeType
	}
	if m.chunkSize <= 0 {
		m.chunkSize = defaultChunkSize
	}

	candidates := DefaultCommands()
	if len(opts.Command) > 0 {
		candidates = [][]string{opts.Command}
	}
	for _, candidate := range candidates {
		if _, err := lookPath(candidate[0]); err == nil {
			m.argv = append([]string(nil), candidate...)
			break
		}
	}

	if m.argv == nil {
		m.log.Info("no audio capture program found, voice input disabled")
	} else {
		m.log.WithField("command", m.argv[0]).Debug("audio capture enabled")
	}
	return m
}

// Available reports whether a capture program was found.
func (m *CommandMicrophone) Available() bool {
	return m.argv != nil
}

// Open starts the capture process. Audio is delivered once the recorder is started.
func (m *CommandMicrophone) Open(ctx context.Context) (orchestrator.Recorder, error) {
	if m.argv == nil {
		return nil, ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(m.argv[0], m.argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &limitedWriter{w: &stderr, n: 4 << 10}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", m.argv[0], err)
	}

	m.log.WithField("pid", cmd.Process.Pid).Debug("capture process started")
	return &Recorder{
		cmd:       cmd,
		stdout:    stdout,
		stderr:    &stderr,
		mimeType:  m.mimeType,
		chunkSize: m.chunkSize,
		log:       m.log,
		done:      make(chan struct{}),
	}, nil
}

// Recorder streams the stdout of one capture process.
type Recorder struct {
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	stderr    *strings.Builder
	mimeType  string
	chunkSize int
	log       logrus.FieldLogger

	mu        sync.Mutex
	started   bool
	stopping  bool
	closed    bool
	killTimer *time.Timer

	waitOnce sync.Once
	waitErr  error
	done     chan struct{}
}

// MimeType is the container of the captured stream.
func (r *Recorder) MimeType() string {
	return r.mimeType
}

// Start delivers stdout chunks to onChunk and calls onStop once the process
// exits. onStop receives an error when the process failed on its own, carrying
// what it wrote to stderr.
func (r *Recorder) Start(onChunk func([]byte), onStop func(error)) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errors.New("recorder closed")
	}
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	r.mu.Unlock()

	go func() {
		buf := make([]byte, r.chunkSize)
		for {
			n, err := r.stdout.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				onChunk(chunk)
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
					r.log.WithError(err).Debug("capture read ended")
				}
				break
			}
		}
		onStop(r.wait())
	}()
	return nil
}

// Stop asks the capture process to finish its stream. The process is killed if
// it has not exited after a grace period.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopping || r.closed {
		return
	}
	r.stopping = true

	if err := r.cmd.Process.Signal(os.Interrupt); err != nil {
		_ = r.cmd.Process.Kill()
		return
	}
	r.killTimer = time.AfterFunc(stopGrace, func() {
		_ = r.cmd.Process.Kill()
	})
}

// Close kills the capture process and releases the device. It does not wait
// for pending chunks to be delivered.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	started := r.started
	r.mu.Unlock()

	_ = r.cmd.Process.Kill()
	if !started {
		go r.wait()
	}
	return nil
}

// Done is closed once the capture process has been reaped.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

// wait reaps the process once. Exits caused by Stop or Close are not failures.
func (r *Recorder) wait() error {
	r.waitOnce.Do(func() {
		err := r.cmd.Wait()

		r.mu.Lock()
		if r.killTimer != nil {
			r.killTimer.Stop()
		}
		interrupted := r.stopping || r.closed
		r.mu.Unlock()

		if err != nil && !interrupted {
			stderr := strings.TrimSpace(r.stderr.String())
			r.log.WithError(err).WithField("stderr", stderr).Warn("capture process failed")
			r.waitErr = captureFailure(filepath.Base(r.cmd.Args[0]), err, stderr)
		}
		close(r.done)
	})
	return r.waitErr
}

func captureFailure(program string, err error, stderr string) error {
	if line, _, _ := strings.Cut(stderr, "\n"); line != "" {
		return fmt.Errorf("%s: %w: %s", program, err, strings.TrimSpace(line))
	}
	return fmt.Errorf("%s: %w", program, err)
}

type limitedWriter struct {
	w io.Writer
	n int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if l.n <= 0 {
		return len(p), nil
	}
	keep := p
	if len(keep) > l.n {
		keep = keep[:l.n]
	}
	l.n -= len(keep)
	if _, err := l.w.Write(keep); err != nil {
		return 0, err
	}
	return len(p), nil
}
