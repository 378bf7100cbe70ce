package transcript

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one continuous utterance by one speaker. Text is cumulative: each
// update replaces the previous text wholesale, so the transcript grows
// word by word without concatenation artifacts.
type Turn struct {
	ID            string     `json:"id"`
	UID           string     `json:"uid"`
	Role          Role       `json:"role"`
	Text          string     `json:"text"`
	Status        TurnStatus `json:"status"`
	StartMs       int64      `json:"start_ms"`
	LastUpdatedAt time.Time  `json:"last_updated_at"`
}

func turnID(uid string, turn int, startMs int64) string {
	return fmt.Sprintf("%s:%d:%d", uid, turn, startMs)
}

// DisplayText is the renderable form of the turn. Status decorations are
// applied here and never stored in Text.
func (t Turn) DisplayText() string {
	switch t.Status {
	case TurnInProgress:
		return t.Text + " [...]"
	case TurnInterrupted:
		return t.Text + " [interrupted]"
	default:
		return t.Text
	}
}
