// Package translate is a client for the unauthenticated Google Translate
// endpoint used to translate dictated input and spoken replies.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/logger"
)

// DefaultBaseURL is the public single-shot translate endpoint.
const DefaultBaseURL = "https://translate.googleapis.com/translate_a/single"

// AutoDetect asks the service to detect the source language.
const AutoDetect = "auto"

// ErrMalformedResponse is returned when the reply has no translated segment.
var ErrMalformedResponse = errors.New("malformed translation response")

// Client translates text.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New returns a Client for baseURL, or DefaultBaseURL when empty.
func New(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Translate translates text from source to target. Languages are primary
// subtags ("ru", "en"); source may be AutoDetect. Text already in the target
// language is returned unchanged without a request.
func (c *Client) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" || source == target {
		return text, nil
	}
	if source == "" {
		source = AutoDetect
	}

	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate: HTTP %d", resp.StatusCode)
	}

	translated, err := parse(body)
	if err != nil {
		return "", err
	}

	c.logger.Debug("translated text",
		zap.String("source", source),
		zap.String("target", target),
		zap.String("preview", logger.Preview(translated, 60)),
	)
	return translated, nil
}

// TranslateOrOriginal is Translate with failures logged and answered with
// the original text.
func (c *Client) TranslateOrOriginal(ctx context.Context, text, source, target string) string {
	translated, err := c.Translate(ctx, text, source, target)
	if err != nil {
		c.logger.Warn("translation failed, using original text",
			zap.String("source", source),
			zap.String("target", target),
			zap.Error(err),
		)
		return text
	}
	return translated
}

// parse joins the [0][i][0] segments of a reply. Long inputs are split into
// one segment per sentence.
func parse(body []byte) (string, error) {
	var outer []json.RawMessage
	if err := json.Unmarshal(body, &outer); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(outer) == 0 {
		return "", ErrMalformedResponse
	}

	var segments [][]json.RawMessage
	if err := json.Unmarshal(outer[0], &segments); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var b strings.Builder
	found := false
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(seg[0], &s); err != nil {
			continue
		}
		b.WriteString(s)
		found = true
	}
	if !found {
		return "", ErrMalformedResponse
	}
	return b.String(), nil
}
