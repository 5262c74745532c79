package server

import (
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/compose"
	"github.com/papercomputeco/parley/pkg/gateway"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/logger"
	"github.com/papercomputeco/parley/pkg/models"
	"github.com/papercomputeco/parley/pkg/provider"
	"github.com/papercomputeco/parley/pkg/transcript"
)

// ChatRequest is the body of POST /api/chat. An empty Text sends the voice
// input draft instead.
type ChatRequest struct {
	Text string `json:"text"`
}

// ChatResponse is the reply to POST /api/chat.
type ChatResponse struct {
	Message     llm.Message   `json:"message"`
	Error       provider.Kind `json:"error"`
	TotalTokens int           `json:"total_tokens"`
}

// UsageResponse is the reply to GET /api/usage.
type UsageResponse struct {
	TotalTokens  int           `json:"total_tokens"`
	MessageCount int           `json:"message_count"`
	Loading      bool          `json:"loading"`
	LastError    provider.Kind `json:"last_error"`
}

// handleChat sends a message through the gateway. Provider failures are
// answered with 200 and a guidance message, like any other reply.
func (s *Server) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()

	var req ChatRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			s.logger.Error("failed to parse request", zap.Error(err))
			return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	// Dictation arriving while the reply is pending stays in the draft.
	text := req.Text
	fromDraft := false
	if text == "" {
		text = s.draft.Take()
		fromDraft = text != ""
	}

	reply, err := s.gateway.Send(c.UserContext(), text)
	if err != nil && fromDraft {
		s.draft.Restore(text)
	}
	switch {
	case errors.Is(err, compose.ErrEmpty):
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, gateway.ErrSendInFlight):
		return errorJSON(c, fiber.StatusConflict, err.Error())
	case err != nil:
		s.logger.Error("send failed", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "internal error")
	}

	s.logger.Debug("chat request handled",
		zap.String("content_preview", logger.Preview(reply.Content, 100)),
		zap.Duration("duration", time.Since(startTime)),
	)

	return c.JSON(ChatResponse{
		Message:     *reply,
		Error:       s.gateway.LastError(),
		TotalTokens: s.gateway.TotalTokens(),
	})
}

func (s *Server) handleListMessages(c *fiber.Ctx) error {
	messages := s.gateway.Messages()
	return c.JSON(map[string]any{
		"count":    len(messages),
		"messages": messages,
	})
}

func (s *Server) handleClear(c *fiber.Ctx) error {
	if err := s.gateway.Clear(c.UserContext()); err != nil {
		if errors.Is(err, gateway.ErrSendInFlight) {
			return errorJSON(c, fiber.StatusConflict, err.Error())
		}
		return errorJSON(c, fiber.StatusInternalServerError, "failed to clear history")
	}
	if s.speaker != nil {
		s.speaker.Stop()
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleUsage(c *fiber.Ctx) error {
	return c.JSON(UsageResponse{
		TotalTokens:  s.gateway.TotalTokens(),
		MessageCount: len(s.gateway.Messages()),
		Loading:      s.gateway.Loading(),
		LastError:    s.gateway.LastError(),
	})
}

// handleToasts drains the pending notifications.
func (s *Server) handleToasts(c *fiber.Ctx) error {
	toasts := []gateway.Toast{}
	if s.toasts != nil {
		if drained := s.toasts.Drain(); drained != nil {
			toasts = drained
		}
	}
	return c.JSON(map[string]any{"toasts": toasts})
}

func (s *Server) handleModels(c *fiber.Ctx) error {
	return c.JSON(map[string]any{"models": models.All()})
}

// handleUpload attaches every file of a multipart upload. Files that cannot
// be attached are reported and skipped.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "multipart form required")
	}

	var (
		attached []string
		rejected = map[string]string{}
	)
	for _, headers := range form.File {
		for _, fh := range headers {
			if fh.Size > compose.MaxAttachmentBytes {
				rejected[fh.Filename] = compose.ErrAttachmentTooLarge.Error()
				continue
			}

			f, err := fh.Open()
			if err != nil {
				rejected[fh.Filename] = "unreadable"
				continue
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				rejected[fh.Filename] = "unreadable"
				continue
			}

			a, err := s.gateway.AttachFile(fh.Filename, data)
			if err != nil {
				rejected[fh.Filename] = err.Error()
				continue
			}
			attached = append(attached, a.Name)
		}
	}

	status := fiber.StatusOK
	if len(attached) == 0 {
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(map[string]any{
		"attached": attached,
		"rejected": rejected,
		"pending":  len(s.gateway.Pending()),
	})
}

func (s *Server) handleListAttachments(c *fiber.Ctx) error {
	return c.JSON(map[string]any{"attachments": s.gateway.Pending()})
}

func (s *Server) handleRemoveAttachment(c *fiber.Ctx) error {
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "index must be a number")
	}
	if err := s.gateway.RemoveAttachment(index); err != nil {
		return errorJSON(c, fiber.StatusNotFound, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleExport(c *fiber.Ctx) error {
	format, err := transcript.ParseFormat(c.Query("format"))
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	data, err := s.gateway.Export(format)
	if err != nil {
		s.logger.Error("export failed", zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "export failed")
	}

	c.Attachment(transcript.FileName(format, time.Now()))
	c.Set(fiber.HeaderContentType, format.ContentType())
	return c.Send(data)
}

func (s *Server) handleImport(c *fiber.Ctx) error {
	n, err := s.gateway.Import(c.UserContext(), c.Body())
	if err != nil {
		if errors.Is(err, gateway.ErrSendInFlight) {
			return errorJSON(c, fiber.StatusConflict, err.Error())
		}
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	if s.speaker != nil {
		s.speaker.Stop()
	}
	return c.JSON(map[string]int{"imported": n})
}
