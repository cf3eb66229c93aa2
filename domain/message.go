package domain

import "time"

type Role string

const (
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
)

// Valid reports whether r is one of the roles a conversation may carry.
func (r Role) Valid() bool {
	switch r {
	case UserRole, AssistantRole:
		return true
	}
	return false
}

// Message is one entry of a conversation. It is never modified once it has
// been appended.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	ID        string    `json:"id,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}
