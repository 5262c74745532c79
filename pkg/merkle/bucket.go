package merkle

import (
	"time"

	"github.com/papercomputeco/parley/pkg/llm"
)

// BucketTypeMessage marks a bucket holding one chat message.
const BucketTypeMessage = "message"

// Bucket is the content of a node: one chat message and the provider that
// produced it.
type Bucket struct {
	Type        string           `json:"type"`
	ID          string           `json:"id"`
	Role        llm.Role         `json:"role"`
	Content     string           `json:"content"`
	Timestamp   time.Time        `json:"timestamp"`
	Attachments []llm.Attachment `json:"attachments,omitempty"`

	// Model and Provider are set on assistant messages.
	Model    string     `json:"model,omitempty"`
	Provider string     `json:"provider,omitempty"`
	Usage    *llm.Usage `json:"usage,omitempty"`
}

// NewMessageBucket wraps a message.
func NewMessageBucket(msg llm.Message) Bucket {
	return Bucket{
		Type:        BucketTypeMessage,
		ID:          msg.ID,
		Role:        msg.Role,
		Content:     msg.Content,
		Timestamp:   msg.Timestamp.UTC(),
		Attachments: msg.Attachments,
	}
}

// Message returns the message held by the bucket.
func (b Bucket) Message() llm.Message {
	return llm.Message{
		ID:          b.ID,
		Role:        b.Role,
		Content:     b.Content,
		Timestamp:   b.Timestamp,
		Attachments: b.Attachments,
	}
}
