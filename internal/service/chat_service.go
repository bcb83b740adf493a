package service

import (
	"context"
	"strings"

	"rosegold/market-service/internal/models"
	"rosegold/market-service/internal/repository"

	"github.com/sirupsen/logrus"
)

// Deliverer hands a persisted, enriched message to the delivery side
// (live push or unread backlog).
type Deliverer interface {
	Deliver(ctx context.Context, msg models.EnrichedMessage) error
}

type ChatService interface {
	SendMessage(ctx context.Context, senderID, recipientID int64, body string) (*models.EnrichedMessage, error)
	ListUnread(ctx context.Context, accountID int64) ([]models.UnreadMarker, error)
	ClearUnread(ctx context.Context, accountID, peerID int64) (int64, error)
	GetHistory(ctx context.Context, accountA, accountB int64) ([]models.EnrichedMessage, error)
	LatestPerThread(ctx context.Context, accountID int64) ([]models.ThreadPreview, error)
	ResolveDisplayName(ctx context.Context, accountID int64) (string, error)
}

type chatService struct {
	repository repository.ChatRepository
	deliverer  Deliverer
	logger     *logrus.Logger
}

func NewChatService(repo repository.ChatRepository, deliverer Deliverer, logger *logrus.Logger) ChatService {
	return &chatService{
		repository: repo,
		deliverer:  deliverer,
		logger:     logger,
	}
}

// SendMessage turns a client submission into a durable message and attempts
// exactly one delivery. The sender identity must come from the
// authenticated connection, never from the payload. Persistence failures
// are the only errors surfaced to the sender; a delivery miss is invisible
// to them and shows up later in the recipient's backlog.
func (s *chatService) SendMessage(ctx context.Context, senderID, recipientID int64, body string) (*models.EnrichedMessage, error) {
	if senderID == recipientID {
		return nil, ErrSelfMessage
	}
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyMessage
	}

	id, sentAt, err := s.repository.InsertMessage(ctx, senderID, recipientID, body)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"sender_id":    senderID,
			"recipient_id": recipientID,
		}).WithError(err).Error("Failed to persist message")
		return nil, err
	}

	msg := models.EnrichedMessage{
		Message: models.Message{
			ID:          id,
			SenderID:    senderID,
			RecipientID: recipientID,
			Body:        body,
			SentAt:      sentAt,
		},
	}

	msg.SenderName, err = s.repository.ResolveDisplayName(ctx, senderID)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to resolve sender display name")
	}
	msg.RecipientName, err = s.repository.ResolveDisplayName(ctx, recipientID)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to resolve recipient display name")
	}

	// The message is durable from here on. A failed delivery means the
	// recipient learns about it on the next history fetch, not data loss.
	if err := s.deliverer.Deliver(ctx, msg); err != nil {
		s.logger.WithFields(logrus.Fields{
			"message_id":   id,
			"sender_id":    senderID,
			"recipient_id": recipientID,
		}).WithError(err).Error("Message persisted but delivery bookkeeping failed")
	}

	s.logger.WithFields(logrus.Fields{
		"message_id":   id,
		"sender_id":    senderID,
		"recipient_id": recipientID,
	}).Debug("Message sent")

	return &msg, nil
}

func (s *chatService) ListUnread(ctx context.Context, accountID int64) ([]models.UnreadMarker, error) {
	markers, err := s.repository.ListUnread(ctx, accountID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list unread messages")
		return nil, err
	}

	return markers, nil
}

func (s *chatService) ClearUnread(ctx context.Context, accountID, peerID int64) (int64, error) {
	count, err := s.repository.ClearUnread(ctx, accountID, peerID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to clear unread messages")
		return 0, err
	}

	return count, nil
}

func (s *chatService) GetHistory(ctx context.Context, accountA, accountB int64) ([]models.EnrichedMessage, error) {
	messages, err := s.repository.GetHistory(ctx, accountA, accountB)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get chat history")
		return nil, err
	}

	return messages, nil
}

func (s *chatService) LatestPerThread(ctx context.Context, accountID int64) ([]models.ThreadPreview, error) {
	previews, err := s.repository.LatestPerThread(ctx, accountID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get latest messages per thread")
		return nil, err
	}

	return previews, nil
}

func (s *chatService) ResolveDisplayName(ctx context.Context, accountID int64) (string, error) {
	return s.repository.ResolveDisplayName(ctx, accountID)
}
