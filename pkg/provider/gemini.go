package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/papercomputeco/parley/pkg/credential"
	"github.com/papercomputeco/parley/pkg/llm"
)

// GenerateRequest is a Gemini generateContent request.
type GenerateRequest struct {
	Contents []GeminiContent `json:"contents"`
}

// GeminiContent is one turn of a GenerateRequest.
type GeminiContent struct {
	Role  string       `json:"role"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart is a text part.
type GeminiPart struct {
	Text string `json:"text"`
}

// GenerateResponse is a Gemini generateContent response.
type GenerateResponse struct {
	Candidates []struct {
		Content GeminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata,omitempty"`
	ModelVersion string `json:"modelVersion"`
}

// Gemini is the fallback provider adapter.
type Gemini struct {
	BaseURL string
}

func (g *Gemini) Name() string { return "gemini" }

// Body encodes history with Gemini's role names: assistant turns become
// "model". Text attachments are already part of the message content; image
// data is not forwarded.
func (g *Gemini) Body(history []llm.Message) GenerateRequest {
	req := GenerateRequest{Contents: make([]GeminiContent, 0, len(history))}
	for _, m := range history {
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		req.Contents = append(req.Contents, GeminiContent{
			Role:  role,
			Parts: []GeminiPart{{Text: m.Content}},
		})
	}
	return req
}

func (g *Gemini) BuildRequest(ctx context.Context, cred credential.Credential, history []llm.Message) (*http.Request, error) {
	payload, err := json.Marshal(g.Body(history))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(g.BaseURL, "/"),
		url.PathEscape(cred.Model),
		url.QueryEscape(cred.Key),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (g *Gemini) ParseResponse(body []byte) (*Completion, error) {
	var resp GenerateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, errors.New("response has no candidates")
	}

	var text strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	c := &Completion{Text: text.String(), Model: resp.ModelVersion}
	if u := resp.UsageMetadata; u != nil {
		c.Usage = llm.Usage{
			PromptTokens:     u.PromptTokenCount,
			CompletionTokens: u.CandidatesTokenCount,
			TotalTokens:      u.TotalTokenCount,
		}
	}
	return c, nil
}
