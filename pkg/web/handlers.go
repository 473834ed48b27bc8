package web

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/selalipop/milo-firmware/pkg/hub"
)

// handleStatus returns the current daemon status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

// handleGetConversation returns the recent conversation
func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	s.conversationMu.RLock()
	defer s.conversationMu.RUnlock()
	return c.JSON(s.conversation)
}

// handleTrigger starts a conversation as if the wake word was heard
func (s *Server) handleTrigger(c *fiber.Ctx) error {
	if s.controller == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "controller not configured",
		})
	}

	if err := s.controller.Trigger(); err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, ErrBusy) {
			status = fiber.StatusConflict
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	s.AddConversation(RoleSystem, "Manual trigger")
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"triggered": true})
}

// handleEnd ends the active conversation
func (s *Server) handleEnd(c *fiber.Ctx) error {
	if s.controller == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "controller not configured",
		})
	}

	if err := s.controller.End(); err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, ErrNoSession) {
			status = fiber.StatusConflict
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"ended": true})
}

// handleStatusWS streams status updates, starting with the current status
func (s *Server) handleStatusWS(c *websocket.Conn) {
	if s.statusHub == nil {
		c.Close()
		return
	}

	client := hub.NewClient(s.statusHub, c)
	if client == nil {
		c.Close()
		return
	}

	// Runs before the write pump starts, so this is the only writer
	data, err := json.Marshal(s.Status())
	if err == nil {
		err = c.WriteMessage(websocket.TextMessage, data)
	}
	if err != nil {
		s.logger.Debug("initial status write failed", "error", err)
	}

	client.Run()
}
