package models

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message kept in conversation memory.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
