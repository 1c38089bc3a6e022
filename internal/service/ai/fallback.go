package ai

import (
	"math/rand"
	"strings"

	"github.com/zhouzirui/nova-companion/internal/analysis/emotion"
	"github.com/zhouzirui/nova-companion/internal/model/chat"
	mood "github.com/zhouzirui/nova-companion/internal/emotion"
)

const messagePlaceholder = "{message}"

var defaultTemplates = map[mood.Emotion][]string{
	mood.Base: {
		`들려주신 "{message}" 얘기, 밤공기처럼 조용히 마음에 스며드네요.`,
		"{message} 라고 했을 때 떠오르는 생각을 천천히 풀어볼게요.",
	},
	mood.Happy: {
		`그 얘기만 들어도 얼굴이 환해져요. "{message}" 덕분에 밤하늘이 더 밝은 느낌이에요.`,
		"{message}라니, 소소한 기쁨이 파도처럼 번지네요.",
	},
	mood.Sad: {
		`"{message}" 이야기를 들으니 마음이 조금 내려앉네요. 이 감정을 함께 살펴볼까요?`,
		"조용히 듣고 있어요. {message}라고 말할 때 마음이 어떤지 더 알려줄래요?",
	},
}

// FallbackResponder produces template replies when no language model is
// available or the model call fails.
type FallbackResponder struct {
	templates map[mood.Emotion][]string
	pick      func(n int) int
}

// NewFallbackResponder returns a responder that picks templates at random.
func NewFallbackResponder() *FallbackResponder {
	return &FallbackResponder{templates: defaultTemplates, pick: rand.Intn}
}

// Respond detects the message mood by keyword and fills a matching template.
func (f *FallbackResponder) Respond(message string) chat.Reply {
	trimmed := strings.TrimSpace(message)
	detected := emotion.Detect(trimmed)

	candidates := f.templates[detected]
	if len(candidates) == 0 {
		detected = mood.Base
		candidates = f.templates[mood.Base]
	}

	text := trimmed
	if len(candidates) > 0 {
		template := candidates[f.pick(len(candidates))]
		text = strings.ReplaceAll(template, messagePlaceholder, trimmed)
	}

	duration := float64(EstimateTTSDuration(text))
	return chat.Reply{Reply: text, Emotion: string(detected), TTSDurationMs: &duration}
}
