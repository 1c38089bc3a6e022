package ai

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/nova-companion/internal/emotion"
	"github.com/zhouzirui/nova-companion/internal/model/chat"
	chatservice "github.com/zhouzirui/nova-companion/internal/service/chat"
	"github.com/zhouzirui/nova-companion/pkg/logger"
)

// Responder generates one reply given the earlier conversation.
type Responder interface {
	Respond(ctx context.Context, message string, history []chat.Message) chat.Reply
}

// Dialogue keeps the server's single rolling conversation and feeds its tail
// to the responder as context.
type Dialogue struct {
	responder Responder
	history   *chatservice.Service
	limit     int
	log       logrus.FieldLogger
}

// NewDialogue wires responder to history. limit <= 0 uses DefaultHistoryLimit.
func NewDialogue(responder Responder, history *chatservice.Service, limit int, log logrus.FieldLogger) *Dialogue {
	if history == nil {
		history = chatservice.NewService()
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Dialogue{
		responder: responder,
		history:   history,
		limit:     limit,
		log:       log.WithField("component", "dialogue"),
	}
}

// Reply answers message and records both turns.
func (d *Dialogue) Reply(ctx context.Context, message string, origin chat.Origin) chat.Reply {
	reply := d.responder.Respond(ctx, message, d.history.Recent(ctx, d.limit))

	d.record(ctx, chat.Message{Role: chat.RoleUser, Content: message, Origin: origin})
	d.record(ctx, chat.Message{Role: chat.RoleAssistant, Content: reply.Reply, Emotion: emotion.Resolve(reply.Emotion)})

	return reply
}

func (d *Dialogue) record(ctx context.Context, msg chat.Message) {
	if _, err := d.history.Append(ctx, msg); err != nil {
		d.log.WithError(err).WithField("role", msg.Role).Warn("message not recorded")
	}
}
