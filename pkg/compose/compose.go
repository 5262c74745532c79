// Package compose assembles outgoing user messages from typed text and the
// pending attachment buffer.
package compose

import (
	"errors"
	"fmt"
	"strings"

	"github.com/papercomputeco/parley/pkg/llm"
)

// ErrEmpty is returned when there is neither text nor an attachment to send.
var ErrEmpty = errors.New("nothing to send")

// Compose builds the user message for text and attachments.
//
// Text attachments are inlined into the body, each under a "--- name ---"
// separator. Images are only listed by name: their data stays on the
// attachment and is turned into image parts when the provider request is built.
func Compose(text string, attachments []llm.Attachment) (llm.Message, error) {
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		return llm.Message{}, ErrEmpty
	}

	var texts, images []llm.Attachment
	for _, a := range attachments {
		switch a.Kind {
		case llm.AttachmentImage:
			images = append(images, a)
		default:
			texts = append(texts, a)
		}
	}

	var b strings.Builder
	b.WriteString(text)

	if len(texts) > 0 {
		b.WriteString("\n\n📎 Attached documents:\n\n")
		for _, f := range texts {
			fmt.Fprintf(&b, "--- %s ---\n%s\n\n", f.Name, f.Content)
		}
	}

	if len(images) > 0 {
		fmt.Fprintf(&b, "\n\n🖼️ Attached images: %d\n", len(images))
		for _, f := range images {
			fmt.Fprintf(&b, "📷 %s\n", f.Name)
		}
	}

	var owned []llm.Attachment
	if len(attachments) > 0 {
		owned = append(owned, attachments...)
	}

	return llm.NewMessage(llm.RoleUser, strings.TrimSpace(b.String()), owned...), nil
}
