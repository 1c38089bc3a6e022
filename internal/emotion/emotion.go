// Package emotion maps the companion's emotion tags and animation modes to
// display labels and avatar video assets.
package emotion

// Emotion is the mood tag attached to assistant replies and the avatar.
type Emotion string

const (
	Base  Emotion = "base"
	Happy Emotion = "happy"
	Sad   Emotion = "sad"
)

// Mode is the avatar's current animation phase.
type Mode string

const (
	Idle     Mode = "idle"
	Talking  Mode = "talking"
	Thinking Mode = "thinking"
)

// VideoBasePath is the directory all avatar clips are served from.
const VideoBasePath = "/videos"

type state struct {
	label string
	idle  string
}

var states = map[Emotion]state{
	Base:  {label: "안정", idle: VideoBasePath + "/base_idle.mp4"},
	Happy: {label: "행복", idle: VideoBasePath + "/happy_idle.mp4"},
	Sad:   {label: "슬픔", idle: VideoBasePath + "/sad_idle.mp4"},
}

var modeLabels = map[Mode]string{
	Idle:     "대기 중",
	Talking:  "대화 중",
	Thinking: "생각 중",
}

// All lists the known emotions in display order.
func All() []Emotion {
	return []Emotion{Base, Happy, Sad}
}

// IsEmotion reports whether raw is one of the known tags.
func IsEmotion(raw string) bool {
	_, ok := states[Emotion(raw)]
	return ok
}

// Resolve returns raw as an Emotion when it is a known tag, else Base.
func Resolve(raw string) Emotion {
	if IsEmotion(raw) {
		return Emotion(raw)
	}
	return Base
}

// Label returns the display label for e, falling back to the Base label.
func Label(e Emotion) string {
	if s, ok := states[e]; ok {
		return s.label
	}
	return states[Base].label
}

// VideoForState selects the avatar clip. Thinking always shows the neutral
// base clip regardless of the previous emotion.
func VideoForState(e Emotion, m Mode) string {
	if m == Thinking {
		return states[Base].idle
	}
	if s, ok := states[e]; ok {
		return s.idle
	}
	return states[Base].idle
}

// ModeLabel returns the avatar status text for m.
func ModeLabel(m Mode) string {
	if label, ok := modeLabels[m]; ok {
		return label
	}
	return modeLabels[Idle]
}
