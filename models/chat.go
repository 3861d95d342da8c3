package models

// Chat outcome statuses.
const (
	StatusAnswered   = "answered"
	StatusOutOfScope = "out_of_scope"
)

type ChatRequest struct {
	Message        string `json:"message" binding:"required,min=1,max=2000"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the blocking answer returned by the chat service.
type ChatResponse struct {
	Answer         string   `json:"answer"`
	Sources        []Source `json:"sources"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Status         string   `json:"status"`
}

// Source attributes part of an answer to a retrieved document page.
type Source struct {
	Title     string `json:"title"`
	Page      string `json:"page"`
	Paragraph string `json:"paragraph"`
	URL       string `json:"url"`
}

// Stream event types. Sources is always the last event of a successful
// stream and always follows Done.
const (
	EventToken   = "token"
	EventDone    = "done"
	EventSources = "sources"
	EventError   = "error"
)

// StreamEvent is one unit on a streamed answer channel. Done carries the
// final answer after cleanup, which may differ from the relayed tokens.
type StreamEvent struct {
	Type    string   `json:"type"`
	Token   string   `json:"token,omitempty"`
	Answer  string   `json:"answer,omitempty"`
	Sources []Source `json:"data,omitempty"`
	Message string   `json:"message,omitempty"`
}
