package types

import "time"

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMatch is a knowledge-base citation attached to an assistant answer.
type ChatMatch struct {
	DocumentID string `json:"document_id"`
	ID         string `json:"id"`
}

// Message is one transcript entry.
type Message struct {
	ID        string      `json:"id"`
	Role      Role        `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
	Matches   []ChatMatch `json:"matches,omitempty"`
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	if m.Matches != nil {
		m.Matches = append([]ChatMatch(nil), m.Matches...)
	}
	return m
}
