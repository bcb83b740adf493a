package chat

import (
	"context"
	"fmt"

	"rosegold/market-service/internal/models"

	"github.com/sirupsen/logrus"
)

// BacklogStore is the slice of the chat store the coordinator needs: the
// ability to record that a message is owed to an offline recipient.
type BacklogStore interface {
	EnqueueUnread(ctx context.Context, messageID, senderID, recipientID int64) error
}

// Notifier delivers an out-of-band nudge (push notification) to a recipient
// who took the backlog path. Best effort; failures are the notifier's
// problem.
type Notifier interface {
	NotifyMessage(ctx context.Context, msg models.EnrichedMessage)
}

// Coordinator decides, exactly once per message, between a live push to an
// open connection and a durable unread marker.
type Coordinator struct {
	registry *Registry
	backlog  BacklogStore
	notifier Notifier
	logger   *logrus.Logger
}

func NewCoordinator(registry *Registry, backlog BacklogStore, notifier Notifier, logger *logrus.Logger) *Coordinator {
	return &Coordinator{
		registry: registry,
		backlog:  backlog,
		notifier: notifier,
		logger:   logger,
	}
}

// Deliver pushes msg to the recipient's live connection if one is
// registered, falling back to the unread backlog otherwise. A failed push
// (stale or saturated handle) is not an error, just a delivery miss: the
// disconnect handler will eventually clean the entry. Only a failure to
// write the marker itself is escalated; the message stays durably
// persisted either way.
func (d *Coordinator) Deliver(ctx context.Context, msg models.EnrichedMessage) error {
	if conn, ok := d.registry.Lookup(msg.RecipientID); ok {
		err := conn.Push(OutboundMessage{Event: EventPrivateMessage, Data: msg})
		if err == nil {
			return nil
		}
		d.logger.WithFields(logrus.Fields{
			"message_id":   msg.ID,
			"recipient_id": msg.RecipientID,
		}).WithError(err).Warn("Live push failed, queueing as unread")
	}

	if err := d.backlog.EnqueueUnread(ctx, msg.ID, msg.SenderID, msg.RecipientID); err != nil {
		d.logger.WithFields(logrus.Fields{
			"message_id":   msg.ID,
			"sender_id":    msg.SenderID,
			"recipient_id": msg.RecipientID,
		}).WithError(err).Error("Failed to queue unread marker")
		return fmt.Errorf("enqueue unread for message %d: %w", msg.ID, err)
	}

	if d.notifier != nil {
		d.notifier.NotifyMessage(ctx, msg)
	}

	return nil
}
