package chat

import (
	"encoding/json"
)

// Event names on the wire. Clients register listeners keyed by these.
const (
	EventPrivateMessage = "private message"
	EventDisconnectMe   = "disconnect me"
	EventError          = "error"
)

// Event is one websocket frame, inbound or outbound.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundMessage wraps data pushed to a client.
type OutboundMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// InboundMessage is the payload of a client-submitted "private message"
// frame. The sender identity is taken from the authenticated connection,
// never from this payload.
type InboundMessage struct {
	RecipientID int64  `json:"recipientId"`
	Body        string `json:"body"`
}
