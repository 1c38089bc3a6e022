// Package orchestrator drives the companion conversation: text and voice
// input, the single in-flight request, emotion and mode transitions, the
// timed talking window and the microphone recording lifecycle.
//
// All state lives on one actor goroutine. Public methods enqueue work onto it
// and network responses, timer fires and recorder callbacks come back as
// events, so there is never more than one mutation in progress.
package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"mime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/nova-companion/internal/emotion"
	"github.com/zhouzirui/nova-companion/internal/model/chat"
	chatservice "github.com/zhouzirui/nova-companion/internal/service/chat"
	"github.com/zhouzirui/nova-companion/pkg/logger"
)

// DefaultTalkDuration is used when a reply carries no ttsDurationMs.
const DefaultTalkDuration = 1800 * time.Millisecond

// User-facing messages.
const (
	MsgChatFailed         = "동행 에이전트가 응답하지 않았어요."
	MsgVoiceFailed        = "음성을 처리하지 못했어요."
	MsgVoiceUnsupported   = "이 환경은 음성 입력을 지원하지 않아요."
	MsgMicrophoneRequired = "마이크 권한이 필요해요."
	VoicePlaceholder      = "음성 메시지를 전송했어요."
)

var errEmptyReply = errors.New("empty reply")

// State is a snapshot of everything the presenters render.
type State struct {
	Messages       []chat.Message
	Input          string
	Emotion        emotion.Emotion
	Mode           emotion.Mode
	Loading        bool
	Error          string
	Recording      bool
	VoiceSupported bool
}

// ReadyToSend reports whether the current input could be submitted.
func (s State) ReadyToSend() bool {
	return ReadyToSend(s.Input, s.Loading)
}

// ReadyToSend is true when input is non-blank and no request is outstanding.
func ReadyToSend(input string, loading bool) bool {
	return strings.TrimSpace(input) != "" && !loading
}

// Options wires the orchestrator's collaborators. Only Backend is required.
type Options struct {
	Backend    Backend
	Speaker    Speaker
	Microphone Microphone
	Clock      Clock
	// Conversation stores the message log; a fresh one is created when nil.
	Conversation *chatservice.Service
	// TalkDuration overrides DefaultTalkDuration.
	TalkDuration time.Duration
	Logger       logrus.FieldLogger
	// OnChange receives every published state, in order, on the actor
	// goroutine. It must not call back into blocking Orchestrator methods.
	OnChange func(State)
}

type recordingSession struct {
	recorder      Recorder
	chunks        [][]byte
	stopRequested bool
	released      bool
}

// Orchestrator owns the conversation state machine.
type Orchestrator struct {
	backend      Backend
	speaker      Speaker
	mic          Microphone
	clock        Clock
	conversation *chatservice.Service
	talkDefault  time.Duration
	log          logrus.FieldLogger
	onChange     func(State)

	ctx       context.Context
	cancel    context.CancelFunc
	events    chan func()
	done      chan struct{}
	closeOnce sync.Once

	snapMu sync.RWMutex
	snap   State

	// Fields below are owned by the actor goroutine.
	input          string
	emotion        emotion.Emotion
	mode           emotion.Mode
	loading        bool
	errMsg         string
	recording      bool
	starting       bool
	voiceSupported bool
	session        *recordingSession
	unreleased     map[*recordingSession]struct{}
	talkTimer      Timer
	talkGen        uint64
	closed         bool
}

// New starts an orchestrator. Call Close to tear it down.
func New(opts Options) (*Orchestrator, error) {
	if opts.Backend == nil {
		return nil, errors.New("orchestrator: backend is required")
	}

	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}

	conversation := opts.Conversation
	if conversation == nil {
		conversation = chatservice.NewService()
	}

	talk := opts.TalkDuration
	if talk <= 0 {
		talk = DefaultTalkDuration
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		backend:        opts.Backend,
		speaker:        opts.Speaker,
		mic:            opts.Microphone,
		clock:          clock,
		conversation:   conversation,
		talkDefault:    talk,
		log:            log.WithField("component", "orchestrator"),
		onChange:       opts.OnChange,
		ctx:            ctx,
		cancel:         cancel,
		events:         make(chan func(), 64),
		done:           make(chan struct{}),
		emotion:        emotion.Base,
		mode:           emotion.Idle,
		voiceSupported: opts.Microphone != nil && opts.Microphone.Available(),
		unreleased:     make(map[*recordingSession]struct{}),
	}
	o.snap = o.snapshot()

	go o.run()
	return o, nil
}

// State returns the most recently published snapshot.
func (o *Orchestrator) State() State {
	o.snapMu.RLock()
	defer o.snapMu.RUnlock()
	return o.snap
}

// SetInput replaces the pending input text.
func (o *Orchestrator) SetInput(text string) {
	o.call(func() {
		if o.closed {
			return
		}
		o.input = text
		o.publish()
	})
}

// SendMessage submits override (when given) or the current input. It returns
// false without side effects when the text is blank or a request is in flight.
func (o *Orchestrator) SendMessage(override ...string) bool {
	accepted := false
	o.call(func() {
		accepted = o.sendMessage(override...)
	})
	return accepted
}

// SendVoice uploads recorded audio. Empty payloads and calls made while a
// request is in flight are ignored.
func (o *Orchestrator) SendVoice(audio []byte, filename string) bool {
	accepted := false
	o.call(func() {
		accepted = o.sendVoice(audio, filename)
	})
	return accepted
}

// StartRecording opens the microphone and begins accumulating audio.
func (o *Orchestrator) StartRecording(ctx context.Context) bool {
	proceed := false
	if !o.call(func() { proceed = o.beginRecording() }) || !proceed {
		return false
	}

	rec, err := o.mic.Open(ctx)

	started := false
	if !o.call(func() { started = o.installRecorder(rec, err) }) && rec != nil {
		_ = rec.Close()
	}
	return started
}

// StopRecording finalizes the active capture; the recorded audio is sent
// once the recorder reports it has flushed its last chunk.
func (o *Orchestrator) StopRecording() {
	o.call(o.stopRecording)
}

// Close cancels the pending talk timer, stops any recording, releases the
// capture handle and stops the actor. No state is published afterwards.
func (o *Orchestrator) Close() error {
	o.closeOnce.Do(func() {
		o.call(o.teardown)
		o.cancel()
		<-o.done
	})
	return nil
}

func (o *Orchestrator) run() {
	defer close(o.done)
	for {
		select {
		case fn := <-o.events:
			fn()
		case <-o.ctx.Done():
			return
		}
	}
}

// call runs fn on the actor and waits for it to finish.
func (o *Orchestrator) call(fn func()) bool {
	done := make(chan struct{})
	select {
	case o.events <- func() { fn(); close(done) }:
	case <-o.ctx.Done():
		return false
	}

	select {
	case <-done:
		return true
	case <-o.ctx.Done():
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
}

// post hands fn to the actor without waiting.
func (o *Orchestrator) post(fn func()) {
	select {
	case o.events <- fn:
	case <-o.ctx.Done():
	}
}

func (o *Orchestrator) snapshot() State {
	return State{
		Messages:       o.conversation.Transcript(o.ctx),
		Input:          o.input,
		Emotion:        o.emotion,
		Mode:           o.mode,
		Loading:        o.loading,
		Error:          o.errMsg,
		Recording:      o.recording,
		VoiceSupported: o.voiceSupported,
	}
}

func (o *Orchestrator) publish() {
	if o.closed {
		return
	}
	state := o.snapshot()

	o.snapMu.Lock()
	o.snap = state
	o.snapMu.Unlock()

	if o.onChange != nil {
		o.onChange(state)
	}
}

func (o *Orchestrator) appendMessage(msg chat.Message) bool {
	if _, err := o.conversation.Append(o.ctx, msg); err != nil {
		o.log.WithError(err).WithField("role", msg.Role).Warn("dropping message")
		return false
	}
	return true
}

func (o *Orchestrator) sendMessage(override ...string) bool {
	text := o.input
	if len(override) > 0 {
		text = override[0]
	}
	text = strings.TrimSpace(text)
	if text == "" || o.loading || o.closed {
		return false
	}

	o.appendMessage(chat.Message{Role: chat.RoleUser, Content: text, Origin: chat.OriginText})
	o.input = ""
	o.beginRequest()
	o.publish()

	ctx := o.ctx
	go func() {
		reply, err := o.backend.Chat(ctx, text)
		o.post(func() { o.finishChat(reply, err) })
	}()
	return true
}

func (o *Orchestrator) sendVoice(audio []byte, filename string) bool {
	if len(audio) == 0 || o.loading || o.closed {
		return false
	}

	o.beginRequest()
	o.publish()

	ctx := o.ctx
	go func() {
		reply, err := o.backend.Voice(ctx, audio, filename)
		o.post(func() { o.finishVoice(reply, err) })
	}()
	return true
}

// beginRequest applies the shared side effects of starting a request.
func (o *Orchestrator) beginRequest() {
	o.errMsg = ""
	o.emotion = emotion.Base
	o.mode = emotion.Thinking
	o.loading = true
	o.cancelTalkTimer()
}

func (o *Orchestrator) finishChat(reply *chat.Reply, err error) {
	if o.closed {
		return
	}
	if err == nil && (reply == nil || strings.TrimSpace(reply.Reply) == "") {
		err = errEmptyReply
	}

	if err != nil {
		o.log.WithError(err).Warn("chat request failed")
		o.fail(MsgChatFailed)
	} else {
		o.applyReply(reply)
	}

	o.loading = false
	o.publish()
}

func (o *Orchestrator) finishVoice(reply *chat.VoiceReply, err error) {
	if o.closed {
		return
	}
	if err == nil && (reply == nil || strings.TrimSpace(reply.Reply.Reply) == "") {
		err = errEmptyReply
	}

	if err != nil {
		o.log.WithError(err).Warn("voice request failed")
		o.fail(MsgVoiceFailed)
	} else {
		transcript := strings.TrimSpace(reply.Transcript)
		if transcript == "" {
			transcript = VoicePlaceholder
		}
		o.appendMessage(chat.Message{Role: chat.RoleUser, Content: transcript, Origin: chat.OriginVoice})
		o.applyReply(&reply.Reply)
	}

	o.loading = false
	o.publish()
}

func (o *Orchestrator) fail(message string) {
	o.errMsg = message
	o.mode = emotion.Idle
}

func (o *Orchestrator) applyReply(reply *chat.Reply) {
	next := emotion.Resolve(reply.Emotion)
	o.appendMessage(chat.Message{Role: chat.RoleAssistant, Content: reply.Reply, Emotion: next})
	o.emotion = next
	o.mode = emotion.Talking

	if o.speaker != nil {
		o.speaker.Speak(reply.Reply)
	}

	talk := o.talkDefault
	if ms := reply.TTSDurationMs; ms != nil && *ms >= 0 {
		talk = time.Duration(math.Round(*ms)) * time.Millisecond
	}
	o.armTalkTimer(talk)
}

// armTalkTimer schedules the talking → idle reset. At most one timer is
// pending; the generation counter discards fires that lost a race with Stop.
func (o *Orchestrator) armTalkTimer(d time.Duration) {
	o.cancelTalkTimer()
	gen := o.talkGen
	o.talkTimer = o.clock.AfterFunc(d, func() {
		o.post(func() { o.talkTimerFired(gen) })
	})
}

func (o *Orchestrator) cancelTalkTimer() {
	if o.talkTimer != nil {
		o.talkTimer.Stop()
		o.talkTimer = nil
	}
	o.talkGen++
}

func (o *Orchestrator) talkTimerFired(gen uint64) {
	if o.closed || gen != o.talkGen {
		return
	}
	o.talkTimer = nil
	o.mode = emotion.Idle
	o.publish()
}

func (o *Orchestrator) beginRecording() bool {
	if o.closed || o.recording || o.starting || o.loading {
		return false
	}
	if !o.voiceSupported {
		o.errMsg = MsgVoiceUnsupported
		o.publish()
		return false
	}
	o.starting = true
	return true
}

func (o *Orchestrator) installRecorder(rec Recorder, openErr error) bool {
	o.starting = false
	if o.closed {
		if rec != nil {
			_ = rec.Close()
		}
		return false
	}

	if openErr == nil && rec == nil {
		openErr = errors.New("microphone returned no recorder")
	}
	if openErr != nil {
		o.log.WithError(openErr).Warn("microphone open failed")
		o.errMsg = captureErrorMessage(openErr)
		o.publish()
		return false
	}

	session := &recordingSession{recorder: rec}
	err := rec.Start(
		func(chunk []byte) {
			o.post(func() { o.captureChunk(session, chunk) })
		},
		func(err error) {
			o.post(func() { o.captureFinalized(session, err) })
		},
	)
	if err != nil {
		_ = rec.Close()
		o.log.WithError(err).Warn("recorder start failed")
		o.errMsg = captureErrorMessage(err)
		o.publish()
		return false
	}

	o.session = session
	o.unreleased[session] = struct{}{}
	o.recording = true
	o.errMsg = ""
	o.publish()
	return true
}

func captureErrorMessage(err error) string {
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return MsgMicrophoneRequired
}

func (o *Orchestrator) captureChunk(session *recordingSession, chunk []byte) {
	if len(chunk) == 0 || session.released {
		return
	}
	session.chunks = append(session.chunks, chunk)
}

// captureFinalized runs once per session after its recorder stopped. A capture
// error is shown instead of sending when the user never asked to stop or
// nothing was recorded.
func (o *Orchestrator) captureFinalized(session *recordingSession, captureErr error) {
	audio := bytes.Join(session.chunks, nil)
	session.chunks = nil
	o.releaseSession(session)

	if o.session == session {
		o.session = nil
		o.recording = false
	}
	if o.closed {
		return
	}

	if captureErr != nil {
		o.log.WithError(captureErr).WithField("bytes", len(audio)).Warn("capture ended with error")
		if !session.stopRequested || len(audio) == 0 {
			o.errMsg = captureErrorMessage(captureErr)
			o.publish()
			return
		}
	}
	o.publish()

	filename := voiceFilename(session.recorder.MimeType(), o.clock.Now())
	if !o.sendVoice(audio, filename) {
		o.log.WithField("bytes", len(audio)).Debug("recorded audio not sent")
	}
}

func (o *Orchestrator) stopRecording() {
	if !o.recording || o.session == nil {
		return
	}
	o.session.stopRequested = true
	o.session.recorder.Stop()
	o.recording = false
	o.publish()
}

func (o *Orchestrator) releaseSession(session *recordingSession) {
	if session.released {
		return
	}
	session.released = true
	delete(o.unreleased, session)
	if err := session.recorder.Close(); err != nil {
		o.log.WithError(err).Debug("recorder close failed")
	}
}

func (o *Orchestrator) teardown() {
	o.cancelTalkTimer()
	// Stopped sessions whose recorder never reported back are released too.
	for session := range o.unreleased {
		session.stopRequested = true
		session.recorder.Stop()
		o.releaseSession(session)
	}
	o.session = nil
	o.recording = false
	o.closed = true
}

func voiceFilename(mimeType string, now time.Time) string {
	ext := "webm"
	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
		if _, sub, ok := strings.Cut(mediaType, "/"); ok && sub != "" {
			ext = strings.TrimPrefix(sub, "x-")
		}
	}
	return fmt.Sprintf("voice-%d.%s", now.UnixMilli(), ext)
}
