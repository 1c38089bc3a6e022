package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/nova-companion/internal/model/chat"
)

type fakeTranscriber struct {
	text     string
	filename string
	audio    []byte
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio []byte, filename string) string {
	f.audio = audio
	f.filename = filename
	return f.text
}

type fakeReplier struct {
	message string
	origin  chat.Origin
	calls   int
}

func (f *fakeReplier) Reply(_ context.Context, message string, origin chat.Origin) chat.Reply {
	f.calls++
	f.message = message
	f.origin = origin
	duration := 2400.0
	return chat.Reply{Reply: "들었어요", Emotion: "sad", TTSDurationMs: &duration}
}

func setupRouter(transcript string) (*chi.Mux, *fakeTranscriber, *fakeReplier) {
	transcriber := &fakeTranscriber{text: transcript}
	replier := &fakeReplier{}
	r := chi.NewRouter()
	New(transcriber, replier, nil).RegisterRoutes(r)
	return r, transcriber, replier
}

func voiceRequest(t *testing.T, field, filename string, audio []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(audio)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/voice", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestVoiceTranscribesAndReplies(t *testing.T) {
	r, transcriber, replier := setupRouter("  오늘 좀 우울해  ")

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, voiceRequest(t, "audio", "clip.wav", []byte("RIFF")))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "clip.wav", transcriber.filename)
	assert.Equal(t, []byte("RIFF"), transcriber.audio)
	assert.Equal(t, "오늘 좀 우울해", replier.message)
	assert.Equal(t, chat.OriginVoice, replier.origin)

	var body chat.VoiceReply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "오늘 좀 우울해", body.Transcript)
	assert.Equal(t, "들었어요", body.Reply.Reply)
	assert.Equal(t, "sad", body.Emotion)
	require.NotNil(t, body.TTSDurationMs)
	assert.Equal(t, 2400.0, *body.TTSDurationMs)
}

func TestVoiceEmptyTranscriptGetsPlaceholder(t *testing.T) {
	r, _, replier := setupRouter("   ")

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, voiceRequest(t, "audio", "clip.wav", []byte("RIFF")))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, emptyTranscript, replier.message)
}

func TestVoiceDefaultFilename(t *testing.T) {
	r, transcriber, _ := setupRouter("hi")

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="audio"; filename=" "`},
		"Content-Type":        {"application/octet-stream"},
	})
	require.NoError(t, err)
	_, err = part.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/voice", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, defaultFilename, transcriber.filename)
}

func TestVoiceRejectsBadUploads(t *testing.T) {
	t.Run("missing audio field", func(t *testing.T) {
		r, _, replier := setupRouter("hi")
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, voiceRequest(t, "file", "clip.wav", []byte("RIFF")))

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Contains(t, resp.Body.String(), msgAudioRequired)
		assert.Zero(t, replier.calls)
	})

	t.Run("empty audio", func(t *testing.T) {
		r, _, replier := setupRouter("hi")
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, voiceRequest(t, "audio", "clip.wav", nil))

		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Contains(t, resp.Body.String(), msgEmptyAudio)
		assert.Zero(t, replier.calls)
	})

	t.Run("not multipart", func(t *testing.T) {
		r, _, _ := setupRouter("hi")
		req := httptest.NewRequest(http.MethodPost, "/voice", bytes.NewBufferString(`{}`))
		req.Header.Set("Content-Type", "application/json")
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("too large", func(t *testing.T) {
		r, _, replier := setupRouter("hi")
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, voiceRequest(t, "audio", "clip.wav", make([]byte, MaxUploadBytes+1)))

		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
		assert.Zero(t, replier.calls)
	})
}
