package emotion

import (
	"testing"

	mood "github.com/zhouzirui/nova-companion/internal/emotion"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		text string
		want mood.Emotion
	}{
		{text: "오늘 정말 행복해", want: mood.Happy},
		{text: "YAY finally", want: mood.Happy},
		{text: "너무 힘들어 ㅠㅠ", want: mood.Sad},
		{text: "I feel down", want: mood.Sad},
		{text: "오늘 날씨 어때?", want: mood.Base},
		{text: "   ", want: mood.Base},
	}

	for _, tt := range tests {
		if got := Detect(tt.text); got != tt.want {
			t.Fatalf("Detect(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestAnalyzeHappyHitWins(t *testing.T) {
	tests := []struct {
		text  string
		score int
	}{
		{text: "좋아 그런데 슬퍼", score: 3},
		{text: "좋아 보이지만 사실 우울하고 외로워", score: 3},
		{text: "좋아 근데 너무 힘들고 외로워", score: 3},
		{text: "great, 행복 but sad", score: 6},
	}

	for _, tt := range tests {
		decision := Analyze(tt.text)
		if decision.Emotion != mood.Happy {
			t.Fatalf("Analyze(%q) = %s, want happy", tt.text, decision.Emotion)
		}
		if decision.Score != tt.score {
			t.Fatalf("Analyze(%q) score = %d, want %d", tt.text, decision.Score, tt.score)
		}
	}
}

func TestAnalyzeSadScore(t *testing.T) {
	decision := Analyze("사실 우울하고 외로워")
	if decision.Emotion != mood.Sad {
		t.Fatalf("expected sad, got %s", decision.Emotion)
	}
	if decision.Score != 6 {
		t.Fatalf("expected score 6, got %d", decision.Score)
	}
}
