package speech

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/nova-companion/internal/model/chat"
	"github.com/zhouzirui/nova-companion/pkg/logger"
	"github.com/zhouzirui/nova-companion/pkg/utils"
)

const (
	// MaxUploadBytes bounds a voice upload.
	MaxUploadBytes = 32 << 20

	defaultFilename     = "voice-message.webm"
	emptyTranscript     = "음성 메시지를 받았어요."
	msgEmptyAudio       = "빈 음성 파일입니다."
	msgAudioRequired    = "audio file is required"
	msgAudioTooLarge    = "audio file is too large"
	msgInvalidMultipart = "failed to parse multipart form"
)

// Transcriber turns uploaded audio into text; it always yields something.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) string
}

// Replier answers a user message and records the exchange.
type Replier interface {
	Reply(ctx context.Context, message string, origin chat.Origin) chat.Reply
}

// Handler serves voice chat.
type Handler struct {
	transcriber Transcriber
	replier     Replier
	log         logrus.FieldLogger
}

// New creates the voice handler.
func New(transcriber Transcriber, replier Replier, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		transcriber: transcriber,
		replier:     replier,
		log:         log.WithField("component", "voice"),
	}
}

// RegisterRoutes mounts the voice routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/voice", h.handleVoice)
}

func (h *Handler) handleVoice(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > MaxUploadBytes {
		utils.RespondError(w, http.StatusRequestEntityTooLarge, msgAudioTooLarge)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(w, http.StatusRequestEntityTooLarge, msgAudioTooLarge)
			return
		}
		utils.RespondError(w, http.StatusBadRequest, msgInvalidMultipart)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, msgAudioRequired)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.log.WithError(err).Warn("failed to read upload")
		utils.RespondError(w, http.StatusBadRequest, msgAudioRequired)
		return
	}
	if len(data) == 0 {
		utils.RespondError(w, http.StatusBadRequest, msgEmptyAudio)
		return
	}

	filename := strings.TrimSpace(header.Filename)
	if filename == "" {
		filename = defaultFilename
	}

	transcript := strings.TrimSpace(h.transcriber.Transcribe(r.Context(), data, filename))
	if transcript == "" {
		transcript = emptyTranscript
	}

	h.log.WithFields(logrus.Fields{"filename": filename, "bytes": len(data)}).Debug("voice message transcribed")

	reply := h.replier.Reply(r.Context(), transcript, chat.OriginVoice)
	utils.RespondJSON(w, http.StatusOK, chat.VoiceReply{Reply: reply, Transcript: transcript})
}
