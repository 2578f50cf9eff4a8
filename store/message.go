package store

// MessageRole is the closed set of message authors. Attachment excerpts are
// stored as system rows so they reach the prompt without rendering as chat
// bubbles.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Valid reports whether the role belongs to the closed enumeration.
func (r MessageRole) Valid() bool {
	switch r {
	case MessageRoleUser, MessageRoleAssistant, MessageRoleSystem:
		return true
	}
	return false
}

// IsChatTurn reports whether the role participates in the visible
// conversation (and in message counts).
func (r MessageRole) IsChatTurn() bool {
	return r == MessageRoleUser || r == MessageRoleAssistant
}

// Message is one turn in a conversation. AttachmentExcerpt carries the
// extracted textual representation of an uploaded file; raw bytes are never
// stored.
type Message struct {
	ID                int32
	UID               string
	SessionID         string
	Role              MessageRole
	Content           string
	AttachmentExcerpt string
	CreatedTs         int64
}

type FindMessage struct {
	ID        *int32
	UID       *string
	SessionID *string
	Role      *MessageRole
	// ChatTurnsOnly restricts results to user/assistant rows, excluding the
	// system rows that hold attachment excerpts.
	ChatTurnsOnly bool
	Limit         *int
}

type DeleteMessage struct {
	ID        *int32
	SessionID *string
}
