package speech

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/nova-companion/pkg/logger"
)

// Transcriber turns an uploaded audio clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// PlaceholderTranscriber describes the clip instead of transcribing it.
type PlaceholderTranscriber struct{}

// Transcribe never fails.
func (PlaceholderTranscriber) Transcribe(_ context.Context, audio []byte, _ string) (string, error) {
	return fmt.Sprintf("음성으로 전달된 메시지 (약 %.1fKB)", float64(len(audio))/1024), nil
}

// Service runs the primary transcriber and degrades to the placeholder when it
// is missing, fails, or hears nothing.
type Service struct {
	primary     Transcriber
	placeholder PlaceholderTranscriber
	log         logrus.FieldLogger
}

// NewService wraps primary, which may be nil.
func NewService(primary Transcriber, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{primary: primary, log: log.WithField("component", "speech")}
}

// Transcribe always returns some text for the clip.
func (s *Service) Transcribe(ctx context.Context, audio []byte, filename string) string {
	if s.primary != nil {
		text, err := s.primary.Transcribe(ctx, audio, filename)
		switch {
		case err != nil:
			s.log.WithError(err).WithField("filename", filename).Warn("transcription failed, using placeholder")
		case strings.TrimSpace(text) == "":
			s.log.WithField("filename", filename).Info("empty transcript, using placeholder")
		default:
			return strings.TrimSpace(text)
		}
	}

	text, _ := s.placeholder.Transcribe(ctx, audio, filename)
	return text
}
