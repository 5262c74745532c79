package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/papercomputeco/parley/pkg/credential"
	"github.com/papercomputeco/parley/pkg/llm"
)

// ChatRequest is an OpenAI-compatible chat completions request.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

// ChatMessage is one message of a ChatRequest. Content is either a string or
// a []ContentPart when the message carries images.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ContentPart is one part of multimodal content.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image by URL; parley always sends data URLs.
type ImageURL struct {
	URL string `json:"url"`
}

// ChatResponse is an OpenAI-compatible chat completions response.
type ChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *llm.Usage `json:"usage,omitempty"`
}

// OpenRouter is the primary provider adapter.
type OpenRouter struct {
	BaseURL string
	Referer string
	Title   string
}

func (o *OpenRouter) Name() string { return "openrouter" }

// Body encodes history. A message with image attachments becomes a text part
// followed by one image_url part per image, carrying the attachment's data URL.
func (o *OpenRouter) Body(model string, history []llm.Message) ChatRequest {
	req := ChatRequest{
		Model:    model,
		Messages: make([]ChatMessage, 0, len(history)),
	}
	for _, m := range history {
		if !m.HasImages() {
			req.Messages = append(req.Messages, ChatMessage{Role: string(m.Role), Content: m.Content})
			continue
		}

		parts := []ContentPart{{Type: "text", Text: m.Content}}
		for _, img := range m.Images() {
			parts = append(parts, ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: img.DataURL}})
		}
		req.Messages = append(req.Messages, ChatMessage{Role: string(m.Role), Content: parts})
	}
	return req
}

func (o *OpenRouter) BuildRequest(ctx context.Context, cred credential.Credential, history []llm.Message) (*http.Request, error) {
	payload, err := json.Marshal(o.Body(cred.Model, history))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(o.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.Key)
	req.Header.Set("Content-Type", "application/json")
	if o.Referer != "" {
		req.Header.Set("HTTP-Referer", o.Referer)
	}
	if o.Title != "" {
		req.Header.Set("X-Title", o.Title)
	}
	return req, nil
}

func (o *OpenRouter) ParseResponse(body []byte) (*Completion, error) {
	var resp ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("response has no choices")
	}

	c := &Completion{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
	}
	if resp.Usage != nil {
		c.Usage = *resp.Usage
	}
	return c, nil
}
