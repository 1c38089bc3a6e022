package speech

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeASRServer struct {
	mu       sync.Mutex
	headers  http.Header
	params   asrSessionRequest
	received []byte
	reply    func(conn *websocket.Conn)
}

func (s *fakeASRServer) handle(t *testing.T) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		s.mu.Lock()
		s.headers = r.Header.Clone()
		s.mu.Unlock()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		opening, err := DecodeFrame(data)
		if err != nil {
			t.Errorf("decode opening frame: %v", err)
			return
		}
		body, err := opening.Body()
		if err != nil {
			t.Errorf("opening body: %v", err)
			return
		}
		s.mu.Lock()
		_ = json.Unmarshal(body, &s.params)
		s.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frame, err := DecodeFrame(data)
			if err != nil {
				t.Errorf("decode audio frame: %v", err)
				return
			}
			chunk, err := frame.Body()
			if err != nil {
				t.Errorf("audio body: %v", err)
				return
			}
			s.mu.Lock()
			s.received = append(s.received, chunk...)
			s.mu.Unlock()

			if frame.IsLast() {
				s.reply(conn)
				return
			}
		}
	}
}

func serverResponse(t *testing.T, payload any, last bool) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	body, err := gzipBytes(raw)
	require.NoError(t, err)

	frame := &Frame{
		Type:          FrameFullServerResponse,
		Flags:         FlagPositiveSequence,
		Serialization: SerializationJSON,
		Compression:   CompressionGzip,
		Sequence:      1,
		Payload:       body,
	}
	if last {
		frame.Flags = FlagNegativeSequence
		frame.Sequence = -2
	}
	return frame.Encode()
}

func newTestTranscriber(t *testing.T, srv *httptest.Server) *VolcengineTranscriber {
	t.Helper()
	tr, err := NewVolcengineTranscriber(VolcengineConfig{
		AppID:         "app",
		AccessToken:   "token",
		Endpoint:      "ws" + strings.TrimPrefix(srv.URL, "http"),
		ChunkSize:     4,
		ChunkInterval: -1,
	}, nil)
	require.NoError(t, err)
	return tr
}

func TestVolcengineTranscribe(t *testing.T) {
	fake := &fakeASRServer{}
	fake.reply = func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.BinaryMessage, serverResponse(t, map[string]any{
			"code":   20000000,
			"result": map[string]any{"text": "안녕"},
		}, false))
		_ = conn.WriteMessage(websocket.BinaryMessage, serverResponse(t, map[string]any{
			"result": map[string]any{"utterances": []map[string]any{{"text": "안녕"}, {"text": "노바"}}},
		}, true))
	}
	srv := httptest.NewServer(fake.handle(t))
	defer srv.Close()

	text, err := newTestTranscriber(t, srv).Transcribe(context.Background(), []byte("0123456789"), "voice-1.wav")
	require.NoError(t, err)
	assert.Equal(t, "안녕 노바", text)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, []byte("0123456789"), fake.received)
	assert.Equal(t, "app", fake.headers.Get("X-Api-App-Key"))
	assert.Equal(t, "token", fake.headers.Get("X-Api-Access-Key"))
	assert.Equal(t, DefaultASRResource, fake.headers.Get("X-Api-Resource-Id"))
	assert.NotEmpty(t, fake.headers.Get("X-Api-Connect-Id"))
	assert.Equal(t, "wav", fake.params.Audio.Format)
	assert.Equal(t, "ko-KR", fake.params.Audio.Language)
	assert.Equal(t, "bigmodel", fake.params.Request.ModelName)
}

func TestVolcengineTranscribeServerError(t *testing.T) {
	fake := &fakeASRServer{}
	fake.reply = func(conn *websocket.Conn) {
		frame := &Frame{Type: FrameError, ErrorCode: 45000151, Payload: []byte("audio format mismatch")}
		_ = conn.WriteMessage(websocket.BinaryMessage, frame.Encode())
	}
	srv := httptest.NewServer(fake.handle(t))
	defer srv.Close()

	_, err := newTestTranscriber(t, srv).Transcribe(context.Background(), []byte("abcdef"), "clip.wav")

	var asrErr *ASRError
	require.True(t, errors.As(err, &asrErr), "got %v", err)
	assert.Equal(t, uint32(45000151), asrErr.Code)
	assert.Equal(t, "audio format mismatch", asrErr.Message)
}

func TestVolcengineTranscribeRejectsUnsupportedFormat(t *testing.T) {
	tr, err := NewVolcengineTranscriber(VolcengineConfig{AppID: "app", AccessToken: "token", Endpoint: "ws://127.0.0.1:1"}, nil)
	require.NoError(t, err)

	_, err = tr.Transcribe(context.Background(), []byte("abc"), "voice-message.webm")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestNewVolcengineTranscriberRequiresCredentials(t *testing.T) {
	_, err := NewVolcengineTranscriber(VolcengineConfig{AppID: "app"}, nil)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return s.text, s.err
}

func TestServiceFallsBackToPlaceholder(t *testing.T) {
	audio := make([]byte, 2048)
	placeholder := "음성으로 전달된 메시지 (약 2.0KB)"

	tests := []struct {
		name    string
		primary Transcriber
		want    string
	}{
		{name: "no primary", primary: nil, want: placeholder},
		{name: "primary error", primary: stubTranscriber{err: errors.New("offline")}, want: placeholder},
		{name: "blank transcript", primary: stubTranscriber{text: "  "}, want: placeholder},
		{name: "primary text", primary: stubTranscriber{text: " 안녕 "}, want: "안녕"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.primary, nil)
			assert.Equal(t, tt.want, svc.Transcribe(context.Background(), audio, "clip.wav"))
		})
	}
}
