package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/nova-companion/internal/model/chat"
)

var (
	ErrEmptyContent = errors.New("message content is required")
	ErrUnknownRole  = errors.New("unknown message role")
)

// Service is an append-only, in-memory conversation log. Messages are never
// mutated or removed once stored; the log lives as long as the process.
type Service struct {
	mu       sync.RWMutex
	messages []chat.Message
}

// NewService bootstraps an empty conversation.
func NewService() *Service {
	return &Service{
		messages: make([]chat.Message, 0, 16),
	}
}

// Append stamps an id and creation time on message and appends it.
func (s *Service) Append(_ context.Context, message chat.Message) (chat.Message, error) {
	if strings.TrimSpace(message.Content) == "" {
		return chat.Message{}, ErrEmptyContent
	}
	if message.Role != chat.RoleUser && message.Role != chat.RoleAssistant {
		return chat.Message{}, ErrUnknownRole
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.messages = append(s.messages, message)
	s.mu.Unlock()

	return message, nil
}

// Transcript returns every stored message in insertion order.
func (s *Service) Transcript(_ context.Context) []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]chat.Message, len(s.messages))
	copy(copied, s.messages)
	return copied
}

// Recent returns at most the last n messages.
func (s *Service) Recent(_ context.Context, n int) []chat.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	start := len(s.messages) - n
	if start < 0 {
		start = 0
	}

	copied := make([]chat.Message, len(s.messages)-start)
	copy(copied, s.messages[start:])
	return copied
}

// Len returns the number of stored messages.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
