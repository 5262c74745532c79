package llm

// AttachmentKind is the MIME class of an attachment.
type AttachmentKind string

const (
	AttachmentText  AttachmentKind = "text"
	AttachmentImage AttachmentKind = "image"
)

// Attachment is a file bundled with a single outgoing message.
type Attachment struct {
	Name string         `json:"name"`
	Kind AttachmentKind `json:"kind"`

	// Content holds the raw text of text attachments.
	Content string `json:"content,omitempty"`

	// DataURL holds the base64 data URL of image attachments.
	DataURL string `json:"data_url,omitempty"`
}
