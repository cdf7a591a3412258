// Package domain defines the chat session model shared by the store, the
// handlers and the renderer, plus the wire types exchanged with the
// TechnicIA backend.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================
// Messages
// ============================================================

// Role identifies who a message is from. It also drives rendering.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleError     Role = "error"
)

// Status is the lifecycle of a message. Only pending messages may change.
type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
)

// Source is a citation fragment returned alongside an answer.
type Source struct {
	PageNumber *int   `json:"page_number,omitempty"`
	Text       string `json:"text"`
}

// Message is one entry of the chat transcript.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Pending reports whether the message is a placeholder awaiting its result.
func (m Message) Pending() bool {
	return m.Status == StatusPending
}

// ============================================================
// Session state
// ============================================================

// SessionState is an immutable snapshot of one chat session.
// Messages is never shared with the store: callers may keep it.
type SessionState struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	Uploading bool      `json:"uploading"`
	Loading   bool      `json:"loading"`

	// Document is the name of the last successfully indexed file.
	Document string `json:"document,omitempty"`
}

// Clone returns a deep copy of the state.
func (s SessionState) Clone() SessionState {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		if m.Sources != nil {
			m.Sources = append([]Source(nil), m.Sources...)
		}
		out.Messages[i] = m
	}
	return out
}

// NewMessage creates a resolved message with a fresh id.
func NewMessage(role Role, content string, sources []Source) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Sources:   sources,
		Status:    StatusResolved,
		CreatedAt: time.Now(),
	}
}

// NewPlaceholder creates a pending assistant message. It is resolved later by
// id into the final assistant or error message.
func NewPlaceholder() Message {
	m := NewMessage(RoleAssistant, "", nil)
	m.Status = StatusPending
	return m
}
