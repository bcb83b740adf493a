package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rosegold/market-service/internal/models"
)

// ChatRepository is the durable side of the messaging subsystem: the message
// log, the unread backlog, and display-name resolution.
type ChatRepository interface {
	InsertMessage(ctx context.Context, senderID, recipientID int64, body string) (int64, time.Time, error)
	EnqueueUnread(ctx context.Context, messageID, senderID, recipientID int64) error
	ListUnread(ctx context.Context, accountID int64) ([]models.UnreadMarker, error)
	ClearUnread(ctx context.Context, accountID, peerID int64) (int64, error)
	GetHistory(ctx context.Context, accountA, accountB int64) ([]models.EnrichedMessage, error)
	LatestPerThread(ctx context.Context, accountID int64) ([]models.ThreadPreview, error)
	ResolveDisplayName(ctx context.Context, accountID int64) (string, error)
	InitializeTables() error
}

type chatRepository struct {
	db *sql.DB
}

func NewChatRepository(db *sql.DB) ChatRepository {
	return &chatRepository{
		db: db,
	}
}

func (r *chatRepository) InitializeTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS chats (
		id BIGSERIAL PRIMARY KEY,
		sender_id BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		recipient_id BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		body TEXT NOT NULL,
		sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS unread_messages (
		message_id BIGINT PRIMARY KEY REFERENCES chats(id) ON DELETE CASCADE,
		sender_id BIGINT NOT NULL,
		recipient_id BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chats_sender ON chats(sender_id);
	CREATE INDEX IF NOT EXISTS idx_chats_recipient ON chats(recipient_id);
	CREATE INDEX IF NOT EXISTS idx_chats_sent_at ON chats(sent_at);
	CREATE INDEX IF NOT EXISTS idx_unread_recipient ON unread_messages(recipient_id);
	`

	_, err := r.db.Exec(query)
	return err
}

func (r *chatRepository) InsertMessage(ctx context.Context, senderID, recipientID int64, body string) (int64, time.Time, error) {
	query := `
	INSERT INTO chats (sender_id, recipient_id, body)
	VALUES ($1, $2, $3)
	RETURNING id, sent_at
	`

	var id int64
	var sentAt time.Time
	err := r.db.QueryRowContext(ctx, query, senderID, recipientID, body).Scan(&id, &sentAt)
	if err != nil {
		return 0, time.Time{}, err
	}

	return id, sentAt, nil
}

// EnqueueUnread is safe to retry: the primary key on message_id turns a
// duplicate marker write into a no-op.
func (r *chatRepository) EnqueueUnread(ctx context.Context, messageID, senderID, recipientID int64) error {
	query := `
	INSERT INTO unread_messages (message_id, sender_id, recipient_id)
	VALUES ($1, $2, $3)
	ON CONFLICT (message_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, messageID, senderID, recipientID)
	return err
}

// ListUnread returns markers oldest first, ordered by the underlying
// message's sent_at, the same ordering GetHistory uses.
func (r *chatRepository) ListUnread(ctx context.Context, accountID int64) ([]models.UnreadMarker, error) {
	query := `
	SELECT u.message_id, u.sender_id, u.recipient_id
	FROM unread_messages u
	JOIN chats c ON c.id = u.message_id
	WHERE u.recipient_id = $1
	ORDER BY c.sent_at ASC, c.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markers []models.UnreadMarker
	for rows.Next() {
		var m models.UnreadMarker
		if err := rows.Scan(&m.MessageID, &m.SenderID, &m.RecipientID); err != nil {
			return nil, err
		}
		markers = append(markers, m)
	}

	return markers, rows.Err()
}

func (r *chatRepository) ClearUnread(ctx context.Context, accountID, peerID int64) (int64, error) {
	query := `
	DELETE FROM unread_messages
	WHERE recipient_id = $1 AND sender_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, accountID, peerID)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (r *chatRepository) GetHistory(ctx context.Context, accountA, accountB int64) ([]models.EnrichedMessage, error) {
	query := `
	SELECT c.id, c.sender_id, c.recipient_id, c.body, c.sent_at, s.username, t.username
	FROM chats c
	JOIN accounts s ON s.id = c.sender_id
	JOIN accounts t ON t.id = c.recipient_id
	WHERE (c.sender_id = $1 AND c.recipient_id = $2)
	   OR (c.sender_id = $2 AND c.recipient_id = $1)
	ORDER BY c.sent_at ASC, c.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, accountA, accountB)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.EnrichedMessage
	for rows.Next() {
		var m models.EnrichedMessage
		err := rows.Scan(
			&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &m.SentAt, &m.SenderName, &m.RecipientName,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// LatestPerThread returns the newest message of every conversation the
// account is part of.
func (r *chatRepository) LatestPerThread(ctx context.Context, accountID int64) ([]models.ThreadPreview, error) {
	query := `
	SELECT DISTINCT ON (peer_id) peer_id, peer_name, message_id, sender_id, body, sent_at
	FROM (
		SELECT
			CASE WHEN c.sender_id = $1 THEN c.recipient_id ELSE c.sender_id END AS peer_id,
			CASE WHEN c.sender_id = $1 THEN t.username ELSE s.username END AS peer_name,
			c.id AS message_id, c.sender_id, c.body, c.sent_at
		FROM chats c
		JOIN accounts s ON s.id = c.sender_id
		JOIN accounts t ON t.id = c.recipient_id
		WHERE c.sender_id = $1 OR c.recipient_id = $1
	) threads
	ORDER BY peer_id, sent_at DESC, message_id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var previews []models.ThreadPreview
	for rows.Next() {
		var p models.ThreadPreview
		err := rows.Scan(&p.PeerID, &p.PeerName, &p.MessageID, &p.SenderID, &p.Body, &p.SentAt)
		if err != nil {
			return nil, err
		}
		previews = append(previews, p)
	}

	return previews, rows.Err()
}

func (r *chatRepository) ResolveDisplayName(ctx context.Context, accountID int64) (string, error) {
	query := `SELECT username FROM accounts WHERE id = $1`

	var username string
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(&username)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("account %d not found", accountID)
		}
		return "", err
	}

	return username, nil
}
