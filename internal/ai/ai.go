// Package ai wraps the language model and embedding providers behind small
// capability interfaces.
package ai

import (
	"context"
	"errors"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("empty response from model")

type Message struct {
	Role    string
	Content string
}

// LLM generates text from a chat transcript. Stream calls onToken for every
// increment in order and returns the full text; a non-nil error from onToken
// aborts the stream.
type LLM interface {
	Complete(ctx context.Context, messages []Message, temperature float32) (string, error)
	Stream(ctx context.Context, messages []Message, temperature float32, onToken func(string) error) (string, error)
}

// Embedder turns text into fixed-size vectors. Identical input yields
// identical output.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// System is shorthand for a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User is shorthand for a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// splitSystem separates leading/embedded system instructions from the
// conversational turns, which is how Gemini expects them.
func splitSystem(messages []Message) (string, []Message) {
	var system string
	turns := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		turns = append(turns, m)
	}
	return system, turns
}
