package usecase

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/edge-assistant/domain"
)

// Conversation is the ordered, append-only message history of one chat surface.
type Conversation struct {
	mu       sync.RWMutex
	messages []domain.Message
	now      func() time.Time
}

// NewConversation starts a conversation holding the assistant's seed message.
func NewConversation(seed string) *Conversation {
	c := &Conversation{now: time.Now}
	c.Append(domain.Message{Role: domain.AssistantRole, Content: seed})
	return c
}

// Append stores msg at the end of the conversation, filling in the id and
// creation time when they are unset, and returns the stored message.
func (c *Conversation) Append(msg domain.Message) domain.Message {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = c.now().UTC()
	}

	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()

	return msg
}

// Snapshot returns a copy of every message in insertion order.
func (c *Conversation) Snapshot() []domain.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.messages)
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}
