package emotion

import (
	"strings"

	mood "github.com/zhouzirui/nova-companion/internal/emotion"
)

// Decision is the keyword analysis result for one utterance.
type Decision struct {
	Emotion mood.Emotion
	Score   int
}

// keywordBuckets are matched against the lower-cased utterance.
var keywordBuckets = map[mood.Emotion][]string{
	mood.Happy: {"기뻐", "좋아", "행복", "yay", "great"},
	mood.Sad:   {"슬퍼", "우울", "down", "힘들", "외로", "sad", "ㅠ", "ㅜ"},
}

// Buckets are checked in this order; the first one with any hit decides, so a
// happy keyword wins no matter how many sad ones follow.
var precedence = []mood.Emotion{mood.Happy, mood.Sad}

// Analyze returns the first bucket in precedence order with a keyword hit. The
// score counts that bucket's hits. Text without any hit is base with a zero
// score.
func Analyze(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Decision{Emotion: mood.Base}
	}

	for _, label := range precedence {
		score := 0
		for _, word := range keywordBuckets[label] {
			if strings.Contains(normalized, word) {
				score += 3
			}
		}
		if score > 0 {
			return Decision{Emotion: label, Score: score}
		}
	}
	return Decision{Emotion: mood.Base}
}

// Detect returns only the emotion of Analyze.
func Detect(text string) mood.Emotion {
	return Analyze(text).Emotion
}
