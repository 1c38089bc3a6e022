package ai

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/zhouzirui/nova-companion/internal/emotion"
)

const (
	baseTTSDurationMs = 2100
	maxTTSBonusMs     = 2000
	ttsMsPerCharacter = 25
)

var (
	emotionTagPattern  = regexp.MustCompile(`(?i)emotion\s*[:\-]\s*(base|happy|sad)`)
	trailingTagPattern = regexp.MustCompile(`(?i)\s*emotion\s*[:\-]\s*(base|happy|sad)\s*$`)
)

// ExtractEmotion returns the emotion named by the first `emotion: x` tag in
// text. ok is false when the model left the tag out.
func ExtractEmotion(text string) (e emotion.Emotion, ok bool) {
	match := emotionTagPattern.FindStringSubmatch(text)
	if match == nil {
		return emotion.Base, false
	}
	return emotion.Resolve(strings.ToLower(match[1])), true
}

// StripEmotionTag removes a trailing emotion tag line so the raw markup never
// reaches the user.
func StripEmotionTag(text string) string {
	return strings.TrimSpace(trailingTagPattern.ReplaceAllString(text, ""))
}

// EstimateTTSDuration approximates how long reading reply aloud takes.
func EstimateTTSDuration(reply string) int {
	bonus := utf8.RuneCountInString(reply) * ttsMsPerCharacter
	if bonus > maxTTSBonusMs {
		bonus = maxTTSBonusMs
	}
	return baseTTSDurationMs + bonus
}
