// Package provider talks to language-model HTTP APIs. Each provider is an
// Adapter that knows its wire schema; Client drives the shared
// request/response cycle and classifies failures.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/credential"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/logger"
)

// DefaultTimeout bounds a single provider call at the transport level.
const DefaultTimeout = 5 * time.Minute

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 16 << 20

// Completion is a successful provider reply.
type Completion struct {
	Text     string
	Usage    llm.Usage
	Provider string
	Model    string
}

// Adapter converts conversation history into one provider's wire format.
type Adapter interface {
	// Name identifies the provider in logs and errors.
	Name() string

	// BuildRequest encodes history into a ready-to-send HTTP request.
	BuildRequest(ctx context.Context, cred credential.Credential, history []llm.Message) (*http.Request, error)

	// ParseResponse decodes a 2xx response body.
	ParseResponse(body []byte) (*Completion, error)
}

// Client sends conversations through an Adapter.
type Client struct {
	adapter    Adapter
	httpClient *http.Client
	logger     *zap.Logger

	// missingKey is reported when Complete is called without a key.
	missingKey Kind
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewPrimaryClient returns a client whose missing-key failure is NO_CREDENTIAL.
func NewPrimaryClient(adapter Adapter, logger *zap.Logger, opts ...ClientOption) *Client {
	return newClient(adapter, KindNoCredential, logger, opts...)
}

// NewFallbackClient returns a client whose missing-key failure is
// FALLBACK_NOT_CONFIGURED.
func NewFallbackClient(adapter Adapter, logger *zap.Logger, opts ...ClientOption) *Client {
	return newClient(adapter, KindFallbackNotConfigured, logger, opts...)
}

func newClient(adapter Adapter, missingKey Kind, logger *zap.Logger, opts ...ClientOption) *Client {
	c := &Client{
		adapter:    adapter,
		missingKey: missingKey,
		logger:     logger,
		httpClient: &http.Client{
			// Free-tier models can be slow to answer.
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the adapter's provider name.
func (c *Client) Name() string {
	return c.adapter.Name()
}

// Complete sends history and returns the reply. Every failure is a *Error.
func (c *Client) Complete(ctx context.Context, cred credential.Credential, history []llm.Message) (*Completion, error) {
	if cred.Key == "" {
		return nil, &Error{Kind: c.missingKey, Provider: c.adapter.Name(), Err: credential.ErrNoCredential}
	}

	start := time.Now()
	req, err := c.adapter.BuildRequest(ctx, cred, history)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Provider: c.adapter.Name(), Err: fmt.Errorf("build request: %w", err)}
	}

	c.logger.Debug("sending provider request",
		zap.String("provider", c.adapter.Name()),
		zap.String("model", cred.Model),
		zap.Int("message_count", len(history)),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Provider: c.adapter.Name(), Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Kind: KindTransient, Provider: c.adapter.Name(), Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := errorFromResponse(c.adapter.Name(), resp.StatusCode, body)
		c.logger.Warn("provider returned error",
			zap.String("provider", c.adapter.Name()),
			zap.Int("status", resp.StatusCode),
			zap.Stringer("kind", perr.Kind),
			zap.String("body", logger.Preview(string(body), 200)),
		)
		return nil, perr
	}

	completion, err := c.adapter.ParseResponse(body)
	if err != nil {
		return nil, &Error{Kind: KindTransient, Provider: c.adapter.Name(), Status: resp.StatusCode, Err: err}
	}
	if completion.Model == "" {
		completion.Model = cred.Model
	}
	completion.Provider = c.adapter.Name()

	c.logger.Debug("received provider response",
		zap.String("provider", c.adapter.Name()),
		zap.String("content_preview", logger.Preview(completion.Text, 100)),
		zap.Int("total_tokens", completion.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return completion, nil
}
