package models

import "time"

// MessageRole is the persisted role vocabulary of the chat log
type MessageRole string

const (
	RoleUser      MessageRole = "user"      // candidate
	RoleAssistant MessageRole = "assistant" // interviewer
	RoleSystem    MessageRole = "system"
)

// Message is one persisted entry of a session's chat log
type Message struct {
	ID        int64       `json:"id"`
	SessionID string      `json:"session_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}
