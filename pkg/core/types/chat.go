package types

import "strings"

// ChatMode gates which outbound chat operations are allowed.
type ChatMode string

const (
	// ChatModeFunctional requires a live signaling channel and media session.
	ChatModeFunctional ChatMode = "Functional"
	// ChatModeTextOnly is REST-only question answering.
	ChatModeTextOnly ChatMode = "TextOnly"
	// ChatModeMaintenance rejects all outbound chat.
	ChatModeMaintenance ChatMode = "Maintenance"
)

// Valid reports whether m is a known chat mode.
func (m ChatMode) Valid() bool {
	switch m {
	case ChatModeFunctional, ChatModeTextOnly, ChatModeMaintenance:
		return true
	default:
		return false
	}
}

// ChatProgress is the kind of a streamed chat event.
type ChatProgress string

const (
	ChatProgressPartial  ChatProgress = "partial"
	ChatProgressAnswer   ChatProgress = "answer"
	ChatProgressComplete ChatProgress = "complete"
)

// ParseChatProgress maps a socket event name such as "chat/partial" to a
// ChatProgress. Unknown names are returned as-is with ok=false.
func ParseChatProgress(event string) (ChatProgress, bool) {
	event = strings.TrimSpace(event)
	event = strings.TrimPrefix(event, "chat/")
	switch p := ChatProgress(event); p {
	case ChatProgressPartial, ChatProgressAnswer, ChatProgressComplete:
		return p, true
	case "done":
		return ChatProgressComplete, true
	default:
		return p, false
	}
}

// Chat is a server-side conversation resource.
type Chat struct {
	ID       string   `json:"id"`
	ChatMode ChatMode `json:"chat_mode,omitempty"`
}

// ChatPayload is the body of a chat round-trip.
type ChatPayload struct {
	SessionID    string    `json:"sessionId,omitempty"`
	StreamID     string    `json:"streamId,omitempty"`
	Messages     []Message `json:"messages"`
	ChatMode     ChatMode  `json:"chatMode"`
	AppendToChat bool      `json:"appendToChat"`
}

// ChatResponse is the assistant answer to a chat round-trip.
type ChatResponse struct {
	Result   string      `json:"result"`
	Matches  []ChatMatch `json:"matches,omitempty"`
	ChatMode ChatMode    `json:"chatMode,omitempty"`
}

// ChatEvent is one inbound signaling frame.
type ChatEvent struct {
	Progress ChatProgress
	Content  string
	Raw      []byte
}

// RatingPayload creates or updates a rating on an assistant message.
type RatingPayload struct {
	KnowledgeID string      `json:"knowledge_id,omitempty"`
	MessageID   string      `json:"message_id"`
	Matches     [][2]string `json:"matches"`
	Score       int         `json:"score"`
}

// Rating is a stored message rating.
type Rating struct {
	ID          string      `json:"id"`
	AgentID     string      `json:"agent_id"`
	ChatID      string      `json:"chat_id"`
	KnowledgeID string      `json:"knowledge_id,omitempty"`
	MessageID   string      `json:"message_id"`
	Matches     [][2]string `json:"matches"`
	Score       int         `json:"score"`
	CreatedAt   string      `json:"created_at,omitempty"`
	ModifiedAt  string      `json:"modified_at,omitempty"`
}
