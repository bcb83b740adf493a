package server

import (
	"context"
	"encoding/json"
	"errors"

	"rosegold/market-service/internal/auth"
	"rosegold/market-service/internal/chat"
	"rosegold/market-service/internal/service"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// upgradeSocket gates the websocket endpoint. Browsers cannot set headers
// on a websocket handshake, so the access token arrives as a query param.
func (s *Server) upgradeSocket(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	token := c.Query("token")
	if token == "" {
		return c.SendStatus(fiber.StatusForbidden)
	}

	claims, err := s.tokens.VerifyAccess(token)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fail("unauthorized"))
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

func (s *Server) socketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		claims, ok := conn.Locals(claimsKey).(*auth.Claims)
		if !ok {
			_ = conn.Close()
			return
		}
		accountID := claims.AccountID

		client := chat.NewClient(accountID, conn, s.sendBuffer, s.pushTimeout)
		s.registry.Register(accountID, client)
		defer func() {
			// Release, not Unregister: if a newer connection for this
			// account superseded us, its registration must survive our
			// teardown.
			s.registry.Release(accountID, client)
			client.Close()
		}()

		s.logger.WithFields(logrus.Fields{
			"account_id": accountID,
		}).Info("Chat connection established")

		go client.WritePump()

		client.ReadPump(func(event chat.Event) {
			switch event.Event {
			case chat.EventPrivateMessage:
				s.handleSocketMessage(client, accountID, event.Data)
			case chat.EventDisconnectMe:
				s.registry.Unregister(accountID)
			}
		})

		s.logger.WithFields(logrus.Fields{
			"account_id": accountID,
		}).Info("Chat connection closed")
	})
}

func (s *Server) handleSocketMessage(client *chat.Client, senderID int64, data json.RawMessage) {
	var inbound chat.InboundMessage
	if err := json.Unmarshal(data, &inbound); err != nil {
		s.pushError(client, "malformed message")
		return
	}

	enriched, err := s.chat.SendMessage(context.Background(), senderID, inbound.RecipientID, inbound.Body)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSelfMessage):
			s.pushError(client, "cannot message yourself")
		case errors.Is(err, service.ErrEmptyMessage):
			s.pushError(client, "empty message")
		default:
			s.pushError(client, "message could not be saved")
		}
		return
	}

	// Echo the stored message so the sender's thread view reflects the
	// authoritative id and timestamp.
	if err := client.Push(chat.OutboundMessage{Event: chat.EventPrivateMessage, Data: enriched}); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"account_id": senderID,
		}).Warn("Failed to echo message to sender")
	}
}

func (s *Server) pushError(client *chat.Client, message string) {
	if err := client.Push(chat.OutboundMessage{Event: chat.EventError, Data: message}); err != nil {
		s.logger.WithError(err).Warn("Failed to push error frame")
	}
}
