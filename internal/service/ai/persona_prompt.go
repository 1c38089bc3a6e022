package ai

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/nova-companion/internal/model/persona"
)

// emotionInstruction asks the model to end every reply with the mood tag that
// ExtractEmotion understands.
const emotionInstruction = "Respond with %s’s reply text followed by a line `emotion: base|happy|sad` describing %s’s state."

// BuildSystemPrompt renders the persona into the system message.
func BuildSystemPrompt(p persona.Persona) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, a %s who chats like a real person in %s.\n", p.Name, p.Title, languageOrDefault(p.Language))
	if p.Tone != "" {
		fmt.Fprintf(&b, "- Vibe: %s.\n", p.Tone)
	}
	if len(p.Interests) > 0 {
		fmt.Fprintf(&b, "- Interests: %s.\n", strings.Join(p.Interests, ", "))
	}
	if len(p.Style) > 0 {
		fmt.Fprintf(&b, "- Style: %s.\n", strings.Join(p.Style, "; "))
	}
	if len(p.Boundaries) > 0 {
		fmt.Fprintf(&b, "- Boundaries: %s.\n", strings.Join(p.Boundaries, "; "))
	}
	if p.Aesthetic != "" {
		fmt.Fprintf(&b, "- Aesthetic: %s.\n", p.Aesthetic)
	}
	fmt.Fprintf(&b, emotionInstruction, p.Name, p.Name)

	return b.String()
}

// FewShotMessages replays the persona's example exchanges as chat history.
func FewShotMessages(p persona.Persona) []*schema.Message {
	messages := make([]*schema.Message, 0, len(p.FewShots)*2)
	for _, shot := range p.FewShots {
		messages = append(messages,
			schema.UserMessage(shot.User),
			schema.AssistantMessage(shot.Assistant, nil),
		)
	}
	return messages
}

func languageOrDefault(language string) string {
	if language == "" {
		return "Korean"
	}
	return language
}
