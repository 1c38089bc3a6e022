package orchestrator

import (
	"context"
	"time"

	"github.com/zhouzirui/nova-companion/internal/model/chat"
)

// Backend is the remote chat/voice API.
type Backend interface {
	Chat(ctx context.Context, message string) (*chat.Reply, error)
	Voice(ctx context.Context, audio []byte, filename string) (*chat.VoiceReply, error)
}

// Speaker reads assistant replies aloud. Speak must not block; failures are
// the implementation's business and are never reported back.
type Speaker interface {
	Speak(text string)
}

// Microphone acquires audio-only capture handles.
type Microphone interface {
	// Available reports whether the runtime can capture audio at all.
	Available() bool
	// Open requests microphone access. It may block on permission prompts.
	Open(ctx context.Context) (Recorder, error)
}

// Recorder is an open capture handle.
//
// Start begins capture; onChunk receives every non-empty slice of encoded
// audio and onStop is called exactly once after the last chunk, once Stop
// has been requested or capture ended on its own. A non-nil error passed to
// onStop means capture failed rather than finished. Close releases the
// underlying device and must be safe to call more than once.
type Recorder interface {
	Start(onChunk func([]byte), onStop func(error)) error
	Stop()
	Close() error
	MimeType() string
}

// Timer is a pending single-shot callback.
type Timer interface {
	Stop() bool
}

// Clock tells time and schedules callbacks. The real clock wraps the time
// package.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
