package chat

// Request is the body of POST /api/chat.
type Request struct {
	Message string `json:"message"`
}

// Reply is the companion's answer to a chat or voice request.
// TTSDurationMs is optional on the wire and may be fractional; nil means the
// client default applies.
type Reply struct {
	Reply         string   `json:"reply"`
	Emotion       string   `json:"emotion"`
	TTSDurationMs *float64 `json:"ttsDurationMs,omitempty"`
}

// VoiceReply extends Reply with the transcript of the uploaded audio.
type VoiceReply struct {
	Reply
	Transcript string `json:"transcript"`
}

// Health is the body returned by GET /health.
type Health struct {
	Status string `json:"status"`
}
