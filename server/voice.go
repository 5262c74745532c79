package server

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/voice"
)

// VoiceState is the reply of the voice endpoints.
type VoiceState struct {
	State     voice.State `json:"state"`
	Dictation string      `json:"dictation"`
	Interim   string      `json:"interim,omitempty"`
	Input     string      `json:"input"`
	LastError string      `json:"last_error,omitempty"`

	// Speaking is the index of the message being read aloud, -1 when idle.
	Speaking    int  `json:"speaking"`
	Translating bool `json:"translating"`

	// Recognition is the session a browser recogniser should be running.
	Recognition *voice.RecognitionConfig `json:"recognition,omitempty"`
}

// VoiceEventRequest is one recognition event posted by a browser recogniser.
type VoiceEventRequest struct {
	Type       voice.EventType `json:"type"`
	Transcript string          `json:"transcript"`
	Final      bool            `json:"final"`
	Lang       string          `json:"lang"`
	Error      string          `json:"error"`
}

func (s *Server) voiceState() VoiceState {
	st := VoiceState{Input: s.draft.Text(), Speaking: -1}
	if s.machine != nil {
		st.State = s.machine.State()
		st.Dictation = s.machine.Dictation()
		st.Interim = s.machine.Interim()
		if err := s.machine.LastError(); err != nil {
			st.LastError = err.Error()
		}
	}
	if s.speaker != nil {
		if i, ok := s.speaker.Speaking(); ok {
			st.Speaking = i
		}
		st.Translating = s.speaker.Translating()
	}
	if s.feed != nil {
		if cfg, ok := s.feed.Active(); ok {
			st.Recognition = &cfg
		}
	}
	return st
}

func (s *Server) handleVoiceState(c *fiber.Ctx) error {
	return c.JSON(s.voiceState())
}

func (s *Server) handleToggleDictation(c *fiber.Ctx) error {
	if s.machine == nil {
		return errorJSON(c, fiber.StatusNotImplemented, voice.ErrUnsupported.Error())
	}
	if err := s.machine.ToggleDictation(c.UserContext()); err != nil {
		return s.voiceError(c, err)
	}
	return c.JSON(s.voiceState())
}

func (s *Server) handleListen(c *fiber.Ctx) error {
	if s.machine == nil {
		return errorJSON(c, fiber.StatusNotImplemented, voice.ErrUnsupported.Error())
	}
	if err := s.machine.Listen(c.UserContext()); err != nil {
		return s.voiceError(c, err)
	}
	return c.JSON(s.voiceState())
}

func (s *Server) handleVoiceStop(c *fiber.Ctx) error {
	s.stopVoice()
	return c.JSON(s.voiceState())
}

// handleVoiceEvent feeds a browser recognition event into the running session.
func (s *Server) handleVoiceEvent(c *fiber.Ctx) error {
	if s.feed == nil {
		return errorJSON(c, fiber.StatusNotImplemented, "voice events are not accepted")
	}

	var req VoiceEventRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	ev := voice.Event{
		Type:       req.Type,
		Transcript: req.Transcript,
		Final:      req.Final,
		Lang:       req.Lang,
	}
	switch req.Type {
	case voice.EventResult, voice.EventEnd:
	case voice.EventError:
		msg := req.Error
		if msg == "" {
			msg = "recognition failed"
		}
		ev.Err = errors.New(msg)
	default:
		return errorJSON(c, fiber.StatusBadRequest, "unknown event type")
	}

	if err := s.feed.Push(ev); err != nil {
		if errors.Is(err, voice.ErrNoSession) {
			return errorJSON(c, fiber.StatusConflict, err.Error())
		}
		return errorJSON(c, fiber.StatusServiceUnavailable, err.Error())
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// handleSpeak toggles reading the message at index aloud.
func (s *Server) handleSpeak(c *fiber.Ctx) error {
	if s.speaker == nil {
		return errorJSON(c, fiber.StatusNotImplemented, voice.ErrUnsupported.Error())
	}

	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "index must be a number")
	}
	msg, ok := s.gateway.Message(index)
	if !ok {
		return errorJSON(c, fiber.StatusNotFound, "message not found")
	}
	if msg.Role != llm.RoleAssistant {
		return errorJSON(c, fiber.StatusUnprocessableEntity, "only assistant messages can be read aloud")
	}

	if err := s.speaker.Toggle(c.UserContext(), index, msg.Content); err != nil {
		return s.voiceError(c, err)
	}
	return c.JSON(s.voiceState())
}

func (s *Server) voiceError(c *fiber.Ctx, err error) error {
	s.logger.Warn("voice request failed", zap.Error(err))
	switch {
	case errors.Is(err, voice.ErrBusy):
		return errorJSON(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, voice.ErrUnsupported):
		return errorJSON(c, fiber.StatusNotImplemented, err.Error())
	default:
		return errorJSON(c, fiber.StatusInternalServerError, err.Error())
	}
}
