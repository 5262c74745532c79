// Package server provides parley's HTTP API: chat, attachments, voice control,
// transcript export and the conversation Merkle DAG, plus MCP over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/compose"
	"github.com/papercomputeco/parley/pkg/gateway"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/merkle"
	"github.com/papercomputeco/parley/pkg/voice"
)

// Deps are the components the API exposes. Gateway is required; without
// Storer the DAG endpoints answer 404, without Machine and Speaker the voice
// endpoints answer 501, and without MCP /mcp is not mounted.
type Deps struct {
	Gateway *gateway.Gateway
	Storer  merkle.Storer

	Machine *voice.Machine
	Feed    *voice.Feed
	Speaker *voice.Speaker
	Draft   *Draft

	Toasts *gateway.ToastLog
	MCP    http.Handler
	Logger *zap.Logger
}

// Server is the HTTP front end of one conversation.
type Server struct {
	config  Config
	gateway *gateway.Gateway
	storer  merkle.Storer
	machine *voice.Machine
	feed    *voice.Feed
	speaker *voice.Speaker
	draft   *Draft
	toasts  *gateway.ToastLog
	logger  *zap.Logger
	server  *fiber.App
}

// New creates a Server and registers its routes.
func New(config Config, deps Deps) (*Server, error) {
	if deps.Gateway == nil {
		return nil, errors.New("server: gateway is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Draft == nil {
		deps.Draft = NewDraft()
	}
	if config.BodyLimit <= 0 {
		config.BodyLimit = compose.MaxAttachmentBytes + 1<<20
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		BodyLimit:             config.BodyLimit,
	})

	s := &Server{
		config:  config,
		gateway: deps.Gateway,
		storer:  deps.Storer,
		machine: deps.Machine,
		feed:    deps.Feed,
		speaker: deps.Speaker,
		draft:   deps.Draft,
		toasts:  deps.Toasts,
		logger:  deps.Logger,
		server:  app,
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	api := app.Group("/api")
	api.Post("/chat", s.handleChat)
	api.Get("/messages", s.handleListMessages)
	api.Delete("/messages", s.handleClear)
	api.Get("/usage", s.handleUsage)
	api.Get("/toasts", s.handleToasts)
	api.Get("/models", s.handleModels)
	api.Post("/attachments", s.handleUpload)
	api.Get("/attachments", s.handleListAttachments)
	api.Delete("/attachments/:index", s.handleRemoveAttachment)
	api.Get("/export", s.handleExport)
	api.Post("/import", s.handleImport)

	api.Get("/voice/state", s.handleVoiceState)
	api.Post("/voice/dictation", s.handleToggleDictation)
	api.Post("/voice/listen", s.handleListen)
	api.Post("/voice/stop", s.handleVoiceStop)
	api.Post("/voice/events", s.handleVoiceEvent)
	api.Post("/voice/speak/:index", s.handleSpeak)

	// DAG inspection endpoints
	app.Get("/dag/stats", s.handleDAGStats)
	app.Get("/dag/node/:hash", s.handleGetNode)
	app.Post("/dag/nodes", s.handlePutNodes)
	app.Get("/dag/history", s.handleListHistories)
	app.Get("/dag/history/:hash", s.handleGetHistory)

	if deps.MCP != nil {
		app.All("/mcp", adaptor.HTTPHandler(deps.MCP))
	}

	return s, nil
}

// Run starts the server on the configured listening address.
func (s *Server) Run() error {
	s.logger.Info("starting parley server", zap.String("listen", s.config.ListenAddr))
	return s.server.Listen(s.config.ListenAddr)
}

// RunWithListener serves on an existing listener.
func (s *Server) RunWithListener(ln net.Listener) error {
	s.logger.Info("starting parley server", zap.String("listen", ln.Addr().String()))
	return s.server.Listener(ln)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopVoice()
	return s.server.ShutdownWithContext(ctx)
}

func (s *Server) stopVoice() {
	if s.machine != nil {
		s.machine.Stop()
	}
	if s.speaker != nil {
		s.speaker.Stop()
	}
}

// Test runs req against the routes without a listener.
func (s *Server) Test(req *http.Request, timeout ...time.Duration) (*http.Response, error) {
	msTimeout := -1
	if len(timeout) > 0 {
		msTimeout = int(timeout[0].Milliseconds())
	}
	return s.server.Test(req, msTimeout)
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(llm.ErrorResponse{Error: msg})
}
