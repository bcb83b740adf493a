package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"rosegold/market-service/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeChatRepo struct {
	nextID    int64
	inserted  []models.Message
	unread    map[int64][]models.UnreadMarker
	names     map[int64]string
	insertErr error
	nameErr   error
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		nextID: 1,
		unread: make(map[int64][]models.UnreadMarker),
		names:  map[int64]string{1: "alice", 2: "bob"},
	}
}

func (f *fakeChatRepo) InsertMessage(_ context.Context, senderID, recipientID int64, body string) (int64, time.Time, error) {
	if f.insertErr != nil {
		return 0, time.Time{}, f.insertErr
	}
	id := f.nextID
	f.nextID++
	sentAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Second)
	f.inserted = append(f.inserted, models.Message{
		ID:          id,
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        body,
		SentAt:      sentAt,
	})
	return id, sentAt, nil
}

func (f *fakeChatRepo) EnqueueUnread(_ context.Context, messageID, senderID, recipientID int64) error {
	for _, m := range f.unread[recipientID] {
		if m.MessageID == messageID {
			return nil
		}
	}
	f.unread[recipientID] = append(f.unread[recipientID], models.UnreadMarker{
		MessageID:   messageID,
		SenderID:    senderID,
		RecipientID: recipientID,
	})
	return nil
}

func (f *fakeChatRepo) ListUnread(_ context.Context, accountID int64) ([]models.UnreadMarker, error) {
	return f.unread[accountID], nil
}

func (f *fakeChatRepo) ClearUnread(_ context.Context, accountID, peerID int64) (int64, error) {
	var kept []models.UnreadMarker
	var removed int64
	for _, m := range f.unread[accountID] {
		if m.SenderID == peerID {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	f.unread[accountID] = kept
	return removed, nil
}

func (f *fakeChatRepo) GetHistory(_ context.Context, accountA, accountB int64) ([]models.EnrichedMessage, error) {
	var out []models.EnrichedMessage
	for _, m := range f.inserted {
		if (m.SenderID == accountA && m.RecipientID == accountB) ||
			(m.SenderID == accountB && m.RecipientID == accountA) {
			out = append(out, models.EnrichedMessage{Message: m})
		}
	}
	return out, nil
}

func (f *fakeChatRepo) LatestPerThread(_ context.Context, _ int64) ([]models.ThreadPreview, error) {
	return nil, nil
}

func (f *fakeChatRepo) ResolveDisplayName(_ context.Context, accountID int64) (string, error) {
	if f.nameErr != nil {
		return "", f.nameErr
	}
	return f.names[accountID], nil
}

func (f *fakeChatRepo) InitializeTables() error { return nil }

type fakeDeliverer struct {
	delivered []models.EnrichedMessage
	err       error
}

func (f *fakeDeliverer) Deliver(_ context.Context, msg models.EnrichedMessage) error {
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, msg)
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestChatService_SendMessage(t *testing.T) {
	req := require.New(t)
	repo := newFakeChatRepo()
	deliverer := &fakeDeliverer{}
	svc := NewChatService(repo, deliverer, quietLogger())

	msg, err := svc.SendMessage(context.Background(), 1, 2, "is the lamp available?")

	req.NoError(err)
	req.Equal(int64(1), msg.ID)
	req.Equal("alice", msg.SenderName)
	req.Equal("bob", msg.RecipientName)
	req.False(msg.SentAt.IsZero())
	req.Len(repo.inserted, 1)
	req.Len(deliverer.delivered, 1)
	req.Equal(msg.ID, deliverer.delivered[0].ID)
}

func TestChatService_SendMessageRejectsSelf(t *testing.T) {
	req := require.New(t)
	repo := newFakeChatRepo()
	svc := NewChatService(repo, &fakeDeliverer{}, quietLogger())

	_, err := svc.SendMessage(context.Background(), 1, 1, "note to self")

	req.ErrorIs(err, ErrSelfMessage)
	req.Empty(repo.inserted)
}

func TestChatService_SendMessageRejectsEmptyBody(t *testing.T) {
	req := require.New(t)
	repo := newFakeChatRepo()
	svc := NewChatService(repo, &fakeDeliverer{}, quietLogger())

	_, err := svc.SendMessage(context.Background(), 1, 2, "   ")

	req.ErrorIs(err, ErrEmptyMessage)
	req.Empty(repo.inserted)
}

func TestChatService_SendMessagePersistFailureSurfaced(t *testing.T) {
	req := require.New(t)
	repo := newFakeChatRepo()
	repo.insertErr = errors.New("db down")
	deliverer := &fakeDeliverer{}
	svc := NewChatService(repo, deliverer, quietLogger())

	_, err := svc.SendMessage(context.Background(), 1, 2, "hello")

	req.Error(err)
	req.Empty(deliverer.delivered)
}

func TestChatService_SendMessageDeliveryFailureHidden(t *testing.T) {
	req := require.New(t)
	repo := newFakeChatRepo()
	deliverer := &fakeDeliverer{err: errors.New("backlog unavailable")}
	svc := NewChatService(repo, deliverer, quietLogger())

	msg, err := svc.SendMessage(context.Background(), 1, 2, "hello")

	// The message is durable; a delivery bookkeeping failure never turns
	// into a send error for the sender.
	req.NoError(err)
	req.NotNil(msg)
	req.Len(repo.inserted, 1)
}

func TestChatService_SendMessageNameResolutionBestEffort(t *testing.T) {
	req := require.New(t)
	repo := newFakeChatRepo()
	repo.nameErr = errors.New("account gone")
	svc := NewChatService(repo, &fakeDeliverer{}, quietLogger())

	msg, err := svc.SendMessage(context.Background(), 1, 2, "hello")

	req.NoError(err)
	req.Empty(msg.SenderName)
	req.Empty(msg.RecipientName)
}

func TestChatService_HistoryRoundTrip(t *testing.T) {
	req := require.New(t)
	repo := newFakeChatRepo()
	svc := NewChatService(repo, &fakeDeliverer{}, quietLogger())
	ctx := context.Background()

	first, err := svc.SendMessage(ctx, 1, 2, "hi bob")
	req.NoError(err)
	second, err := svc.SendMessage(ctx, 2, 1, "hi alice")
	req.NoError(err)
	_, err = svc.SendMessage(ctx, 1, 3, "unrelated thread")
	req.NoError(err)

	history, err := svc.GetHistory(ctx, 1, 2)
	req.NoError(err)
	req.Len(history, 2)
	req.Equal(first.ID, history[0].ID)
	req.Equal(second.ID, history[1].ID)
	req.True(history[0].SentAt.Before(history[1].SentAt))
}

func TestChatService_ListUnreadOldestFirst(t *testing.T) {
	req := require.New(t)
	repo := newFakeChatRepo()
	svc := NewChatService(repo, &fakeDeliverer{}, quietLogger())
	ctx := context.Background()

	req.NoError(repo.EnqueueUnread(ctx, 10, 1, 3))
	req.NoError(repo.EnqueueUnread(ctx, 11, 2, 3))
	// A retried enqueue for the same message does not duplicate.
	req.NoError(repo.EnqueueUnread(ctx, 10, 1, 3))

	markers, err := svc.ListUnread(ctx, 3)
	req.NoError(err)
	req.Len(markers, 2)
	req.Equal(int64(10), markers[0].MessageID)
	req.Equal(int64(11), markers[1].MessageID)
}

func TestChatService_ClearUnreadScopedToPeer(t *testing.T) {
	req := require.New(t)
	repo := newFakeChatRepo()
	svc := NewChatService(repo, &fakeDeliverer{}, quietLogger())
	ctx := context.Background()

	req.NoError(repo.EnqueueUnread(ctx, 10, 1, 3))
	req.NoError(repo.EnqueueUnread(ctx, 11, 2, 3))

	count, err := svc.ClearUnread(ctx, 3, 1)
	req.NoError(err)
	req.Equal(int64(1), count)

	remaining, err := svc.ListUnread(ctx, 3)
	req.NoError(err)
	req.Len(remaining, 1)
	req.Equal(int64(2), remaining[0].SenderID)

	// Clearing again removes nothing and is not an error.
	count, err = svc.ClearUnread(ctx, 3, 1)
	req.NoError(err)
	req.Zero(count)
}
