// Package transcript exports conversations as text, markdown, HTML or JSON
// and imports the JSON form back.
package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"

	"github.com/papercomputeco/parley/pkg/llm"
)

// Format is an export format.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
)

// ErrUnknownFormat is returned for formats other than the ones above.
var ErrUnknownFormat = errors.New("unknown transcript format")

// ParseFormat accepts a format name or its file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "json":
		return FormatJSON, nil
	case "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatText:
		return "txt"
	case FormatMarkdown:
		return "md"
	case FormatHTML:
		return "html"
	default:
		return "json"
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatText:
		return "text/plain; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "application/json"
	}
}

// FileName is the default download name, chat-YYYY-MM-DD.<ext>.
func FileName(f Format, at time.Time) string {
	return "chat-" + at.Format("2006-01-02") + "." + f.Extension()
}

// Document is the JSON export.
type Document struct {
	ExportDate   time.Time `json:"export_date"`
	MessageCount int       `json:"message_count"`
	Messages     []Entry   `json:"messages"`
}

// Entry is one message of a Document.
type Entry struct {
	ID          string           `json:"id,omitempty"`
	Role        llm.Role         `json:"role"`
	Text        string           `json:"text"`
	Timestamp   time.Time        `json:"timestamp"`
	Attachments []llm.Attachment `json:"attachments,omitempty"`
}

// Export renders messages in the given format.
func Export(messages []llm.Message, format Format, exportedAt time.Time) ([]byte, error) {
	switch format {
	case FormatText:
		return exportText(messages), nil
	case FormatMarkdown:
		return exportMarkdown(messages, exportedAt), nil
	case FormatHTML:
		return exportHTML(messages, exportedAt)
	case FormatJSON:
		return exportJSON(messages, exportedAt)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func speaker(role llm.Role) string {
	if role == llm.RoleUser {
		return "You"
	}
	return "Assistant"
}

func exportText(messages []llm.Message) []byte {
	parts := make([]string, len(messages))
	for i, m := range messages {
		parts[i] = speaker(m.Role) + ": " + m.Content
	}
	return []byte(strings.Join(parts, "\n\n"))
}

func exportMarkdown(messages []llm.Message, exportedAt time.Time) []byte {
	var b strings.Builder
	b.WriteString("# 📝 Conversation export\n\n")
	fmt.Fprintf(&b, "**Date:** %s\n\n---\n", exportedAt.Format(time.RFC1123))
	for _, m := range messages {
		icon := "🤖"
		if m.Role == llm.RoleUser {
			icon = "👤"
		}
		fmt.Fprintf(&b, "\n### %s %s\n\n%s\n\n---\n", icon, speaker(m.Role), m.Content)
	}
	return []byte(b.String())
}

var htmlPage = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Conversation {{.Date}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 800px; margin: 40px auto; padding: 20px; background: #f5f5f5; }
.message { margin: 20px 0; padding: 15px; border-radius: 12px; }
.user { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; margin-left: 20%; }
.assistant { background: white; margin-right: 20%; border: 1px solid #e5e7eb; }
.role { font-weight: bold; margin-bottom: 8px; }
h1 { text-align: center; color: #333; }
</style>
</head>
<body>
<h1>Conversation export</h1>
<p>{{.Date}}</p>
{{range .Messages}}<div class="message {{.Role}}">
<div class="role">{{.Speaker}}</div>
{{.Body}}
</div>
{{end}}</body>
</html>
`))

type htmlMessage struct {
	Role    string
	Speaker string
	Body    template.HTML
}

// exportHTML renders each message body from markdown. goldmark drops raw
// HTML by default, so message text cannot inject markup.
func exportHTML(messages []llm.Message, exportedAt time.Time) ([]byte, error) {
	md := goldmark.New()
	data := struct {
		Date     string
		Messages []htmlMessage
	}{Date: exportedAt.Format(time.RFC1123)}

	for _, m := range messages {
		var body bytes.Buffer
		if err := md.Convert([]byte(m.Content), &body); err != nil {
			return nil, fmt.Errorf("render message %s: %w", m.ID, err)
		}
		data.Messages = append(data.Messages, htmlMessage{
			Role:    string(m.Role),
			Speaker: speaker(m.Role),
			Body:    template.HTML(body.String()),
		})
	}

	var out bytes.Buffer
	if err := htmlPage.Execute(&out, data); err != nil {
		return nil, fmt.Errorf("render transcript: %w", err)
	}
	return out.Bytes(), nil
}

func exportJSON(messages []llm.Message, exportedAt time.Time) ([]byte, error) {
	doc := Document{
		ExportDate:   exportedAt.UTC(),
		MessageCount: len(messages),
		Messages:     make([]Entry, len(messages)),
	}
	for i, m := range messages {
		doc.Messages[i] = Entry{
			ID:          m.ID,
			Role:        m.Role,
			Text:        m.Content,
			Timestamp:   m.Timestamp.UTC(),
			Attachments: m.Attachments,
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Import reads a JSON export. Entries without an ID get a new one and
// entries without a timestamp get importedAt.
func Import(data []byte, importedAt time.Time) ([]llm.Message, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal transcript: %w", err)
	}

	messages := make([]llm.Message, 0, len(doc.Messages))
	for i, e := range doc.Messages {
		if e.Role != llm.RoleUser && e.Role != llm.RoleAssistant {
			return nil, fmt.Errorf("message %d: unknown role %q", i, e.Role)
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.Timestamp.IsZero() {
			e.Timestamp = importedAt
		}
		messages = append(messages, llm.Message{
			ID:          e.ID,
			Role:        e.Role,
			Content:     e.Text,
			Timestamp:   e.Timestamp,
			Attachments: e.Attachments,
		})
	}
	return messages, nil
}
