package llm

import (
	"time"

	"github.com/google/uuid"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation.
// Messages are append-only: once created they are never mutated.
type Message struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Timestamp   time.Time    `json:"timestamp"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// NewMessage creates a message stamped with a fresh ID and the current time.
func NewMessage(role Role, content string, attachments ...Attachment) Message {
	return Message{
		ID:          uuid.NewString(),
		Role:        role,
		Content:     content,
		Timestamp:   time.Now(),
		Attachments: attachments,
	}
}

// HasImages reports whether any attachment of the message is an image.
func (m Message) HasImages() bool {
	for _, a := range m.Attachments {
		if a.Kind == AttachmentImage {
			return true
		}
	}
	return false
}

// Images returns the image attachments of the message in attachment order.
func (m Message) Images() []Attachment {
	var out []Attachment
	for _, a := range m.Attachments {
		if a.Kind == AttachmentImage && a.DataURL != "" {
			out = append(out, a)
		}
	}
	return out
}
