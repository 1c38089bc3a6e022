package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/nova-companion/internal/model/chat"
	"github.com/zhouzirui/nova-companion/internal/model/persona"
	"github.com/zhouzirui/nova-companion/pkg/logger"
)

// DefaultHistoryLimit caps how many stored messages are replayed to the model.
const DefaultHistoryLimit = 10

var errEmptyCompletion = errors.New("empty completion")

// Options configures a Service.
type Options struct {
	Persona      persona.Persona
	HistoryLimit int
	Fallback     *FallbackResponder
	Logger       logrus.FieldLogger
}

// Service turns user messages into persona replies tagged with an emotion.
type Service struct {
	chain        compose.Runnable[map[string]any, *schema.Message]
	persona      persona.Persona
	systemPrompt string
	fewShots     []*schema.Message
	historyLimit int
	fallback     *FallbackResponder
	log          logrus.FieldLogger
}

// NewService compiles the prompt chain over chatModel. A nil chatModel yields
// a Service that always answers from the fallback templates.
func NewService(ctx context.Context, chatModel model.BaseChatModel, opts Options) (*Service, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	fallback := opts.Fallback
	if fallback == nil {
		fallback = NewFallbackResponder()
	}

	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	s := &Service{
		persona:      opts.Persona,
		systemPrompt: BuildSystemPrompt(opts.Persona),
		fewShots:     FewShotMessages(opts.Persona),
		historyLimit: limit,
		fallback:     fallback,
		log:          log.WithField("component", "ai"),
	}

	if chatModel == nil {
		return s, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	s.chain = runnable

	return s, nil
}

// ModelEnabled reports whether replies come from the language model.
func (s *Service) ModelEnabled() bool {
	return s.chain != nil
}

// Respond generates a reply to message given the earlier conversation. Model
// failures and empty completions degrade to the fallback responder.
func (s *Service) Respond(ctx context.Context, message string, history []chat.Message) chat.Reply {
	if s.chain == nil {
		return s.fallback.Respond(message)
	}

	reply, err := s.generate(ctx, message, history)
	if err != nil {
		s.log.WithError(err).Warn("model request failed, using fallback")
		return s.fallback.Respond(message)
	}
	return reply
}

func (s *Service) generate(ctx context.Context, message string, history []chat.Message) (chat.Reply, error) {
	response, err := s.chain.Invoke(ctx, s.buildChainInput(message, history))
	if err != nil {
		return chat.Reply{}, fmt.Errorf("failed to run AI chain: %w", err)
	}

	raw := ""
	if response != nil {
		raw = strings.TrimSpace(response.Content)
	}
	if raw == "" {
		return chat.Reply{}, errEmptyCompletion
	}

	detected, _ := ExtractEmotion(raw)
	text := StripEmotionTag(raw)
	if text == "" {
		return chat.Reply{}, errEmptyCompletion
	}

	duration := float64(EstimateTTSDuration(text))
	s.log.WithFields(logrus.Fields{
		"persona": s.persona.ID,
		"emotion": detected,
		"length":  len(text),
	}).Info("generated reply")

	return chat.Reply{Reply: text, Emotion: string(detected), TTSDurationMs: &duration}, nil
}

func (s *Service) buildChainInput(message string, history []chat.Message) map[string]any {
	return map[string]any{
		"system":  s.systemPrompt,
		"history": s.buildHistoryMessages(history),
		"query":   message,
	}
}

func (s *Service) buildHistoryMessages(messages []chat.Message) []*schema.Message {
	startIdx := 0
	if len(messages) > s.historyLimit {
		startIdx = len(messages) - s.historyLimit
	}

	history := make([]*schema.Message, 0, len(s.fewShots)+len(messages)-startIdx)
	history = append(history, s.fewShots...)
	for _, msg := range messages[startIdx:] {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			content := msg.Content
			if msg.Emotion != "" {
				content += "\nemotion: " + string(msg.Emotion)
			}
			history = append(history, schema.AssistantMessage(content, nil))
		}
	}

	return history
}
