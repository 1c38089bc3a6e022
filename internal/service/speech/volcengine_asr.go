package speech

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/nova-companion/pkg/logger"
)

const (
	// DefaultASREndpoint is the big-model streaming-input recognition endpoint.
	DefaultASREndpoint = "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel_nostream"
	// DefaultASRResource is the duration-billed resource id.
	DefaultASRResource = "volc.bigasr.sauc.duration"

	defaultChunkSize     = 6400 // 200ms of 16kHz 16bit mono PCM
	defaultChunkInterval = 200 * time.Millisecond
	defaultASRTimeout    = 30 * time.Second

	// Success codes reported in server payloads.
	asrCodeOK      = 0
	asrCodeSuccess = 20000000
)

var (
	ErrMissingCredentials = errors.New("volcengine speech config requires app id and access token")
	ErrUnsupportedFormat  = errors.New("unsupported audio format")
)

// ASRError is a failure reported by the recognition service.
type ASRError struct {
	Code    uint32
	Message string
}

func (e *ASRError) Error() string {
	return fmt.Sprintf("ASR error %d: %s", e.Code, e.Message)
}

// VolcengineConfig configures VolcengineTranscriber.
type VolcengineConfig struct {
	AppID       string
	AccessToken string
	ResourceID  string
	Language    string
	Endpoint    string
	Timeout     time.Duration
	// ChunkSize and ChunkInterval pace the audio upload. A negative interval
	// sends chunks back to back.
	ChunkSize     int
	ChunkInterval time.Duration
}

// VolcengineTranscriber recognizes speech through the Volcengine big-model
// ASR websocket API.
type VolcengineTranscriber struct {
	cfg    VolcengineConfig
	dialer *websocket.Dialer
	log    logrus.FieldLogger
}

// NewVolcengineTranscriber validates cfg and fills defaults.
func NewVolcengineTranscriber(cfg VolcengineConfig, log logrus.FieldLogger) (*VolcengineTranscriber, error) {
	cfg.AppID = strings.TrimSpace(cfg.AppID)
	cfg.AccessToken = strings.TrimSpace(cfg.AccessToken)
	if cfg.AppID == "" || cfg.AccessToken == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultASREndpoint
	}
	if cfg.ResourceID == "" {
		cfg.ResourceID = DefaultASRResource
	}
	if cfg.Language == "" {
		cfg.Language = "ko-KR"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultASRTimeout
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.ChunkInterval == 0 {
		cfg.ChunkInterval = defaultChunkInterval
	}

	if log == nil {
		log = logger.Discard()
	}

	return &VolcengineTranscriber{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.Timeout},
		log:    log.WithField("component", "asr"),
	}, nil
}

type asrSessionRequest struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate,omitempty"`
		Bits     int    `json:"bits,omitempty"`
		Channel  int    `json:"channel,omitempty"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnableITN      bool   `json:"enable_itn,omitempty"`
		EnablePunc     bool   `json:"enable_punc,omitempty"`
		ShowUtterances bool   `json:"show_utterances,omitempty"`
		ResultType     string `json:"result_type,omitempty"`
	} `json:"request"`
}

type asrServerMessage struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Result   struct {
		Text       string `json:"text"`
		Utterances []struct {
			Text string `json:"text"`
		} `json:"utterances,omitempty"`
	} `json:"result"`
}

func (m *asrServerMessage) text() string {
	if m.Result.Text != "" {
		return m.Result.Text
	}
	parts := make([]string, 0, len(m.Result.Utterances))
	for _, u := range m.Result.Utterances {
		if u.Text != "" {
			parts = append(parts, u.Text)
		}
	}
	return strings.Join(parts, " ")
}

// audioFormat maps an upload filename to the service's format and codec.
func audioFormat(filename string) (format, codec string, err error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".wav":
		return "wav", "raw", nil
	case ".pcm":
		return "pcm", "raw", nil
	case ".ogg", ".opus":
		return "ogg", "opus", nil
	case ".mp3":
		return "mp3", "raw", nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
	}
}

// Transcribe uploads audio in paced chunks and returns the final transcript.
func (t *VolcengineTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("no audio data to send")
	}
	format, codec, err := audioFormat(filename)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	connectID := uuid.NewString()
	header := http.Header{}
	header.Set("X-Api-App-Key", t.cfg.AppID)
	header.Set("X-Api-Access-Key", t.cfg.AccessToken)
	header.Set("X-Api-Resource-Id", t.cfg.ResourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := t.dialer.DialContext(ctx, t.cfg.Endpoint, header)
	if err != nil {
		return "", fmt.Errorf("failed to connect to ASR websocket: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	entry := t.log.WithField("connect_id", connectID)
	if logID := resp.Header.Get("X-Tt-Logid"); logID != "" {
		entry = entry.WithField("logid", logID)
	}
	entry.WithFields(logrus.Fields{"bytes": len(audio), "format": format}).Debug("asr session opened")

	params := asrSessionRequest{}
	params.User.UID = connectID
	params.Audio.Language = t.cfg.Language
	params.Audio.Format = format
	params.Audio.Codec = codec
	params.Audio.Rate = 16000
	params.Audio.Bits = 16
	params.Audio.Channel = 1
	params.Request.ModelName = "bigmodel"
	params.Request.EnableITN = true
	params.Request.EnablePunc = true
	params.Request.ShowUtterances = true
	params.Request.ResultType = "full"

	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ASR request: %w", err)
	}
	opening, err := newClientRequest(raw)
	if err != nil {
		return "", err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, opening.Encode()); err != nil {
		return "", fmt.Errorf("failed to send ASR request: %w", err)
	}

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- t.sendAudio(ctx, conn, audio)
	}()

	text, err := t.receive(conn)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		select {
		case sErr := <-sendErr:
			if sErr != nil {
				return "", fmt.Errorf("failed to send audio data: %w", sErr)
			}
		default:
		}
		return "", err
	}

	entry.WithField("length", len(text)).Info("asr transcript received")
	return text, nil
}

func (t *VolcengineTranscriber) sendAudio(ctx context.Context, conn *websocket.Conn, audio []byte) error {
	// The opening request takes sequence 1.
	sequence := int32(2)
	for offset := 0; offset < len(audio); offset += t.cfg.ChunkSize {
		end := min(offset+t.cfg.ChunkSize, len(audio))
		last := end == len(audio)

		frame, err := newAudioRequest(audio[offset:end], sequence, last)
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, frame.Encode()); err != nil {
			return fmt.Errorf("failed to send audio chunk: %w", err)
		}
		if last {
			return nil
		}
		sequence++

		if t.cfg.ChunkInterval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.cfg.ChunkInterval):
			}
		}
	}
	return nil
}

func (t *VolcengineTranscriber) receive(conn *websocket.Conn) (string, error) {
	var transcript string
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("failed to read ASR response: %w", err)
		}

		frame, err := DecodeFrame(data)
		if err != nil {
			return "", fmt.Errorf("failed to decode ASR frame: %w", err)
		}

		switch frame.Type {
		case FrameError:
			body, err := frame.Body()
			if err != nil {
				body = frame.Payload
			}
			return "", &ASRError{Code: frame.ErrorCode, Message: string(body)}

		case FrameFullServerResponse:
			body, err := frame.Body()
			if err != nil {
				return "", fmt.Errorf("failed to decompress ASR payload: %w", err)
			}

			var msg asrServerMessage
			if err := json.Unmarshal(body, &msg); err != nil {
				t.log.WithError(err).Debug("skipping undecodable ASR payload")
				continue
			}
			if msg.Code != asrCodeOK && msg.Code != asrCodeSuccess {
				return "", &ASRError{Code: uint32(msg.Code), Message: msg.Message}
			}
			if text := msg.text(); text != "" {
				transcript = text
			}
			if frame.IsLast() || msg.Sequence < 0 {
				return transcript, nil
			}
		}
	}
}
