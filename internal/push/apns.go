package push

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"rosegold/market-service/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DeviceTokens resolves the APNs device token registered for an account.
type DeviceTokens interface {
	GetDeviceToken(ctx context.Context, accountID int64) (string, error)
}

// Alert is the user-visible part of a remote notification.
type Alert struct {
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`
	Body     string `json:"body,omitempty"`
}

// APS is the Apple-defined envelope of a remote notification.
type APS struct {
	Alert    *Alert `json:"alert,omitempty"`
	Category string `json:"category,omitempty"`
	Badge    *int   `json:"badge,omitempty"`
	Sound    string `json:"sound,omitempty"`
}

// Payload is the full body posted to the APNs device endpoint.
type Payload struct {
	APS             APS    `json:"aps"`
	MessageSenderID int64  `json:"messageSenderId,omitempty"`
	MessageID       int64  `json:"messageId,omitempty"`
	ViewingUserID   int64  `json:"viewingUserId,omitempty"`
}

const categoryMessage = "MESSAGE"

// providerTokenTTL is how long a signed provider token is reused before a
// fresh one is minted. Apple accepts tokens up to an hour old.
const providerTokenTTL = 50 * time.Minute

// APNSNotifier nudges offline recipients through the APNs HTTP/2 provider
// API. net/http negotiates h2 over TLS on its own, and provider tokens are
// ES256-signed JWTs cached until close to expiry. All delivery is best
// effort: a missing device token or a provider error is logged and dropped.
type APNSNotifier struct {
	client  *http.Client
	devices DeviceTokens
	host    string
	topic   string
	keyID   string
	teamID  string
	key     *ecdsa.PrivateKey
	logger  *logrus.Logger

	mu          sync.Mutex
	cachedToken string
	tokenIssued time.Time
}

func NewAPNSNotifier(host, topic, keyFile, keyID, teamID string, devices DeviceTokens, logger *logrus.Logger) (*APNSNotifier, error) {
	keyBytes, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("read APNs key: %w", err)
	}

	key, err := parseP8Key(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("parse APNs key: %w", err)
	}

	return &APNSNotifier{
		client:  &http.Client{Timeout: 10 * time.Second},
		devices: devices,
		host:    host,
		topic:   topic,
		keyID:   keyID,
		teamID:  teamID,
		key:     key,
		logger:  logger,
	}, nil
}

// NotifyMessage sends a "you have a new message" notification for a message
// that took the backlog path.
func (n *APNSNotifier) NotifyMessage(ctx context.Context, msg models.EnrichedMessage) {
	deviceToken, err := n.devices.GetDeviceToken(ctx, msg.RecipientID)
	if err != nil {
		// Most recipients simply have no registered device.
		return
	}

	payload := Payload{
		APS: APS{
			Alert: &Alert{
				Title: msg.SenderName,
				Body:  msg.Body,
			},
			Category: categoryMessage,
		},
		MessageSenderID: msg.SenderID,
		MessageID:       msg.ID,
		ViewingUserID:   msg.RecipientID,
	}

	if err := n.post(ctx, deviceToken, payload); err != nil {
		n.logger.WithFields(logrus.Fields{
			"message_id":   msg.ID,
			"recipient_id": msg.RecipientID,
		}).WithError(err).Warn("Failed to send push notification")
	}
}

func (n *APNSNotifier) post(ctx context.Context, deviceToken string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	providerToken, err := n.providerToken()
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/3/device/%s", n.host, deviceToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("authorization", "bearer "+providerToken)
	req.Header.Set("apns-id", uuid.NewString())
	req.Header.Set("apns-topic", n.topic)
	req.Header.Set("apns-push-type", "alert")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("apns responded %d", resp.StatusCode)
	}
	return nil
}

func (n *APNSNotifier) providerToken() (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cachedToken != "" && time.Since(n.tokenIssued) < providerTokenTTL {
		return n.cachedToken, nil
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": n.teamID,
		"iat": now.Unix(),
	})
	token.Header["kid"] = n.keyID

	signed, err := token.SignedString(n.key)
	if err != nil {
		return "", err
	}

	n.cachedToken = signed
	n.tokenIssued = now
	return signed, nil
}

func parseP8Key(data []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}

	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("key is not ECDSA")
	}
	return key, nil
}
