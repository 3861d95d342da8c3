// Package memory keeps the recent turns of each conversation.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"medical-rag-platform/models"
)

// MaxTurns bounds each conversation to the three most recent exchanges.
const MaxTurns = 6

// Store is the conversation memory used by the chat service.
type Store interface {
	Append(ctx context.Context, conversationID string, role models.Role, content string) error
	History(ctx context.Context, conversationID string) ([]models.Turn, error)
	Clear(ctx context.Context, conversationID string) error
}

// InMemory is a process-local Store for single-instance deployments.
// Conversations never share a slice, so writers to different ids cannot
// clobber each other. With a ttl, conversations idle longer than ttl are
// dropped by a sweep that runs at most once per ttl on Append.
type InMemory struct {
	mu        sync.RWMutex
	convs     map[string]*conversation
	limit     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type conversation struct {
	turns   []models.Turn
	touched time.Time
}

// NewInMemory returns a store that keeps conversations until cleared.
func NewInMemory() *InMemory {
	return NewInMemoryWithTTL(0)
}

// NewInMemoryWithTTL returns a store that forgets conversations idle for
// longer than ttl. A non-positive ttl disables expiry.
func NewInMemoryWithTTL(ttl time.Duration) *InMemory {
	return &InMemory{
		convs: make(map[string]*conversation),
		limit: MaxTurns,
		ttl:   ttl,
		now:   time.Now,
	}
}

func (m *InMemory) expired(c *conversation, now time.Time) bool {
	return m.ttl > 0 && now.Sub(c.touched) > m.ttl
}

func (m *InMemory) sweep(now time.Time) {
	if m.ttl <= 0 || now.Sub(m.lastSweep) < m.ttl {
		return
	}
	m.lastSweep = now
	for id, c := range m.convs {
		if m.expired(c, now) {
			delete(m.convs, id)
		}
	}
}

func (m *InMemory) Append(_ context.Context, conversationID string, role models.Role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	c, ok := m.convs[conversationID]
	if !ok || m.expired(c, now) {
		c = &conversation{}
		m.convs[conversationID] = c
	}
	turns := append(c.turns, models.Turn{Role: role, Content: strings.TrimSpace(content)})
	if over := len(turns) - m.limit; over > 0 {
		// copy so the evicted prefix can be collected
		turns = append([]models.Turn(nil), turns[over:]...)
	}
	c.turns = turns
	c.touched = now
	return nil
}

// History returns a copy of the turns, oldest first. Unknown or expired ids
// yield an empty slice and are not created.
func (m *InMemory) History(_ context.Context, conversationID string) ([]models.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.convs[conversationID]
	if !ok || m.expired(c, m.now()) {
		return []models.Turn{}, nil
	}
	out := make([]models.Turn, len(c.turns))
	copy(out, c.turns)
	return out, nil
}

func (m *InMemory) Clear(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.convs, conversationID)
	return nil
}

// Len reports how many conversations are held.
func (m *InMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.convs)
}

// RenderContext formats turns as the "User:"/"Assistant:" transcript that is
// prefixed to a new question.
func RenderContext(turns []models.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		if t.Role == models.RoleUser {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return b.String()
}
