// Package mcpserver exposes the conversation as Model Context Protocol tools,
// so MCP clients can talk through parley and read its state.
package mcpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/logger"
	"github.com/papercomputeco/parley/pkg/provider"
)

// Conversation is the part of the gateway the tools drive.
type Conversation interface {
	Send(ctx context.Context, text string) (*llm.Message, error)
	Messages() []llm.Message
	TotalTokens() int
	LastError() provider.Kind
	Clear(ctx context.Context) error
}

type SendInput struct {
	Text string `json:"text" jsonschema:"the user message to send"`
}

type SendOutput struct {
	Reply       string `json:"reply"`
	Error       string `json:"error,omitempty" jsonschema:"failure kind when the reply is guidance instead of an answer"`
	TotalTokens int    `json:"total_tokens"`
}

type UsageInput struct{}

type UsageOutput struct {
	TotalTokens  int    `json:"total_tokens"`
	MessageCount int    `json:"message_count"`
	LastError    string `json:"last_error"`
}

type ClearInput struct{}

type ClearOutput struct {
	Cleared bool `json:"cleared"`
}

type ListInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"return only the most recent messages, 0 for all"`
}

type ListOutput struct {
	Messages []MessageOutput `json:"messages"`
}

type MessageOutput struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// New returns an MCP server with the conversation tools registered.
func New(conv Conversation, version string, logger *zap.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "parley", Version: version}, nil)
	t := &tools{conv: conv, logger: logger}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "send_message",
		Description: "Send a message to the assistant and return its reply",
	}, t.send)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_usage",
		Description: "Return the tokens used by the conversation",
	}, t.usage)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_history",
		Description: "Clear the conversation and reset token usage",
	}, t.clear)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_messages",
		Description: "List the conversation messages, oldest first",
	}, t.list)

	return server
}

// Handler serves server over streamable HTTP.
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}

type tools struct {
	conv   Conversation
	logger *zap.Logger
}

func (t *tools) send(ctx context.Context, _ *mcp.CallToolRequest, in SendInput) (*mcp.CallToolResult, SendOutput, error) {
	t.logger.Debug("mcp send_message", zap.String("content_preview", logger.Preview(in.Text, 50)))

	reply, err := t.conv.Send(ctx, in.Text)
	if err != nil {
		return nil, SendOutput{}, err
	}

	out := SendOutput{Reply: reply.Content, TotalTokens: t.conv.TotalTokens()}
	if kind := t.conv.LastError(); kind != provider.KindNone {
		out.Error = kind.String()
	}
	return nil, out, nil
}

func (t *tools) usage(_ context.Context, _ *mcp.CallToolRequest, _ UsageInput) (*mcp.CallToolResult, UsageOutput, error) {
	return nil, UsageOutput{
		TotalTokens:  t.conv.TotalTokens(),
		MessageCount: len(t.conv.Messages()),
		LastError:    t.conv.LastError().String(),
	}, nil
}

func (t *tools) clear(ctx context.Context, _ *mcp.CallToolRequest, _ ClearInput) (*mcp.CallToolResult, ClearOutput, error) {
	if err := t.conv.Clear(ctx); err != nil {
		return nil, ClearOutput{}, err
	}
	return nil, ClearOutput{Cleared: true}, nil
}

func (t *tools) list(_ context.Context, _ *mcp.CallToolRequest, in ListInput) (*mcp.CallToolResult, ListOutput, error) {
	messages := t.conv.Messages()
	if in.Limit > 0 && in.Limit < len(messages) {
		messages = messages[len(messages)-in.Limit:]
	}

	out := ListOutput{Messages: make([]MessageOutput, len(messages))}
	for i, m := range messages {
		out.Messages[i] = MessageOutput{Role: string(m.Role), Content: m.Content, Timestamp: m.Timestamp}
	}
	return nil, out, nil
}
