package server

import (
	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleLatestMessages(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	previews, err := s.chat.LatestPerThread(c.Context(), claims.AccountID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.JSON(ok(previews))
}

func (s *Server) handleChatThread(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	peerID, err := queryID(c, "otherUserAccount")
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	messages, err := s.chat.GetHistory(c.Context(), claims.AccountID, peerID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.JSON(ok(messages))
}

func (s *Server) handleUnreadMessages(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	markers, err := s.chat.ListUnread(c.Context(), claims.AccountID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.JSON(ok(markers))
}

func (s *Server) handleClearUnread(c *fiber.Ctx) error {
	claims := claimsFrom(c)

	var body struct {
		SenderID int64 `json:"senderId" validate:"required"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fail("invalid body"))
	}
	if err := s.validate.Struct(body); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fail(err.Error()))
	}

	// Scoped to the one peer so reading this conversation leaves unread
	// state for other peers alone. Clearing nothing is fine.
	if _, err := s.chat.ClearUnread(c.Context(), claims.AccountID, body.SenderID); err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.JSON(ok(true))
}

func (s *Server) handleGetUsername(c *fiber.Ctx) error {
	accountID, err := queryID(c, "accountId")
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	username, err := s.chat.ResolveDisplayName(c.Context(), accountID)
	if err != nil {
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.JSON(ok(username))
}
