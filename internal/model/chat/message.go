package chat

import (
	"time"

	"github.com/zhouzirui/nova-companion/internal/emotion"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Origin records how a user message entered the conversation.
type Origin string

const (
	OriginText  Origin = "text"
	OriginVoice Origin = "voice"
)

// Message is one immutable conversation turn. Insertion order is display order.
type Message struct {
	ID        string          `json:"id"`
	Role      Role            `json:"role"`
	Content   string          `json:"content"`
	Emotion   emotion.Emotion `json:"emotion,omitempty"`
	Origin    Origin          `json:"origin,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
