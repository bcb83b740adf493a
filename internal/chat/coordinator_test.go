package chat

import (
	"context"
	"errors"
	"testing"

	"rosegold/market-service/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type stubBacklog struct {
	enqueued [][3]int64
	err      error
}

func (s *stubBacklog) EnqueueUnread(_ context.Context, messageID, senderID, recipientID int64) error {
	if s.err != nil {
		return s.err
	}
	s.enqueued = append(s.enqueued, [3]int64{messageID, senderID, recipientID})
	return nil
}

type stubNotifier struct {
	notified []models.EnrichedMessage
}

func (s *stubNotifier) NotifyMessage(_ context.Context, msg models.EnrichedMessage) {
	s.notified = append(s.notified, msg)
}

func testMessage() models.EnrichedMessage {
	return models.EnrichedMessage{
		Message: models.Message{
			ID:          42,
			SenderID:    1,
			RecipientID: 2,
			Body:        "is the lamp still available?",
		},
		SenderName:    "alice",
		RecipientName: "bob",
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestCoordinator_LivePush(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	conn := &stubConn{}
	registry.Register(2, conn)
	backlog := &stubBacklog{}
	notifier := &stubNotifier{}
	coord := NewCoordinator(registry, backlog, notifier, quietLogger())

	err := coord.Deliver(context.Background(), testMessage())

	req.NoError(err)
	req.Len(conn.pushed, 1)
	req.Equal(EventPrivateMessage, conn.pushed[0].Event)
	req.Empty(backlog.enqueued)
	req.Empty(notifier.notified)
}

func TestCoordinator_OfflineRecipientQueued(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	backlog := &stubBacklog{}
	notifier := &stubNotifier{}
	coord := NewCoordinator(registry, backlog, notifier, quietLogger())

	err := coord.Deliver(context.Background(), testMessage())

	req.NoError(err)
	req.Equal([][3]int64{{42, 1, 2}}, backlog.enqueued)
	req.Len(notifier.notified, 1)
}

func TestCoordinator_StaleHandleFallsBackToBacklog(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	registry.Register(2, &stubConn{err: ErrConnClosed})
	backlog := &stubBacklog{}
	coord := NewCoordinator(registry, backlog, nil, quietLogger())

	err := coord.Deliver(context.Background(), testMessage())

	req.NoError(err)
	req.Equal([][3]int64{{42, 1, 2}}, backlog.enqueued)
}

func TestCoordinator_BacklogFailureEscalated(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	backlog := &stubBacklog{err: errors.New("db down")}
	coord := NewCoordinator(registry, backlog, nil, quietLogger())

	err := coord.Deliver(context.Background(), testMessage())

	req.Error(err)
	req.ErrorContains(err, "enqueue unread")
}

func TestCoordinator_NilNotifier(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	backlog := &stubBacklog{}
	coord := NewCoordinator(registry, backlog, nil, quietLogger())

	req.NoError(coord.Deliver(context.Background(), testMessage()))
	req.Len(backlog.enqueued, 1)
}
