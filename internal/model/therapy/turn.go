package therapy

import (
	"strings"
	"time"
)

// Turn is one completed utterance/reply exchange. Rows are written once by
// the orchestrator after synthesis succeeds and never mutated afterwards.
type Turn struct {
	SessionID      string    `json:"sessionId"`
	Timestamp      time.Time `json:"timestamp"`
	Transcript     string    `json:"transcript"`
	Emotion        string    `json:"emotion"`
	Reply          string    `json:"reply"`
	Crisis         bool      `json:"crisisFlag"`
	InputAudioPath string    `json:"audioPath"`
	ReplyAudioPath string    `json:"replyAudioPath"`
}

// Exchange is the (user transcript, therapist reply) pair fed into prompts.
type Exchange struct {
	Transcript string
	Reply      string
}

// FormatHistory renders exchanges the way every prompt expects them:
// alternating مستخدم/معالج lines, oldest first.
func FormatHistory(history []Exchange) string {
	if len(history) == 0 {
		return ""
	}

	var b strings.Builder
	for i, ex := range history {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("مستخدم: ")
		b.WriteString(ex.Transcript)
		b.WriteString("\nمعالج: ")
		b.WriteString(ex.Reply)
	}
	return b.String()
}
