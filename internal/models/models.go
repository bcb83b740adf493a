package models

import (
	"time"
)

// Account is a verified marketplace user. IDs are assigned by Postgres and
// immutable once issued.
type Account struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	AvatarURL    string
	UserRating   float64
	Address      string
	City         string
	State        string
	Zipcode      string
	RefreshToken string
	CreatedAt    time.Time
}

// UnverifiedAccount holds a registration that has not confirmed its email
// address yet. Promoted into Account on confirmation.
type UnverifiedAccount struct {
	ID               int64
	Username         string
	Email            string
	PasswordHash     string
	AvatarURL        string
	Address          string
	City             string
	State            string
	Zipcode          string
	VerificationCode string
	CreatedAt        time.Time
}

// Message is one directed chat message. Immutable once persisted; ID and
// SentAt are assigned by the store, never by the client.
type Message struct {
	ID          int64     `json:"id"`
	SenderID    int64     `json:"senderId"`
	RecipientID int64     `json:"recipientId"`
	Body        string    `json:"body"`
	SentAt      time.Time `json:"sentAt"`
}

// EnrichedMessage is a persisted message plus the display names resolved for
// client presentation.
type EnrichedMessage struct {
	Message
	SenderName    string `json:"senderName"`
	RecipientName string `json:"recipientName"`
}

// UnreadMarker records that a persisted message is owed to a recipient who
// had no open connection at send time. Sender and recipient are denormalized
// so the backlog can be listed without a join on the hot path.
type UnreadMarker struct {
	MessageID   int64 `json:"messageId"`
	SenderID    int64 `json:"senderId"`
	RecipientID int64 `json:"recipientId"`
}

// ThreadPreview is the newest message of one conversation, used to populate
// the messages tab.
type ThreadPreview struct {
	PeerID    int64     `json:"peerId"`
	PeerName  string    `json:"peerName"`
	MessageID int64     `json:"messageId"`
	SenderID  int64     `json:"senderId"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sentAt"`
}

// Item is a marketplace listing.
type Item struct {
	ID          int64     `json:"id"`
	AccountID   int64     `json:"accountId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Image1      string    `json:"image1,omitempty"`
	Image2      string    `json:"image2,omitempty"`
	Image3      string    `json:"image3,omitempty"`
	IsAvailable bool      `json:"isAvailable"`
	PickedUp    bool      `json:"pickedUp"`
	Zipcode     string    `json:"zipcode"`
	Categories  []int64   `json:"categories,omitempty"`
	DatePosted  time.Time `json:"datePosted"`
}

// PasswordReset is a pending password-recovery code for an account.
type PasswordReset struct {
	AccountID int64
	Code      string
	CreatedAt time.Time
}
