/*
Package chat contains the real-time delivery core: the connection
registry, room subscriptions, the event dispatcher and the call-signaling
relay.

This file defines the wire protocol: the event envelope exchanged over
WebSocket connections and the payload types for each event kind.
*/
package chat

import "encoding/json"

// EventType discriminates the events exchanged with clients.
type EventType string

// Inbound event kinds.
const (
	// TypeAuth binds the connection to an identity. It must be the first
	// event on a fresh connection; everything else is rejected until then.
	TypeAuth EventType = "auth"

	// TypeJoin subscribes the connection to a chat's live events.
	TypeJoin EventType = "join"

	// TypeMessage carries a chat message. Inbound it is a send request;
	// outbound it carries the canonical persisted record.
	TypeMessage EventType = "message"

	// TypeRing, TypeAnswer and TypeEnd are call-signaling requests routed
	// point-to-point by target identity.
	TypeRing   EventType = "ring"
	TypeAnswer EventType = "answer"
	TypeEnd    EventType = "end"
)

// Outbound event kinds.
const (
	// TypeReady confirms a successful auth handshake.
	TypeReady EventType = "ready"

	// TypeNewChat notifies members that a chat including them was created.
	TypeNewChat EventType = "new_chat"

	// TypeIncomingCall, TypeCallAnswered and TypeCallEnded are the
	// delivered forms of ring, answer and end.
	TypeIncomingCall EventType = "incoming_call"
	TypeCallAnswered EventType = "call_answered"
	TypeCallEnded    EventType = "call_ended"

	// TypeError carries a business error back to the requesting connection.
	TypeError EventType = "error"
)

// Event is the envelope for every frame in both directions.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeEvent marshals a payload into a ready-to-send envelope.
func EncodeEvent(eventType EventType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(Event{
		Type:    eventType,
		Payload: raw,
	})
}

// AuthPayload is the inbound payload of TypeAuth.
type AuthPayload struct {
	Token string `json:"token"`
}

// ReadyPayload is the outbound payload of TypeReady.
type ReadyPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// JoinPayload is the inbound payload of TypeJoin.
type JoinPayload struct {
	ChatID int64 `json:"chatId"`
}

// SendPayload is the inbound payload of TypeMessage.
type SendPayload struct {
	ChatID        int64  `json:"chatId"`
	Text          string `json:"text"`
	AttachmentKey string `json:"attachmentKey,omitempty"`
}

// SignalPayload is shared by the three call-signaling kinds. From is
// stamped by the server with the sender's bound identity; any value the
// client supplies is overwritten. Payload is relayed verbatim and is
// opaque to the server (SDP offers, answers, ICE candidates).
type SignalPayload struct {
	From     string          `json:"from,omitempty"`
	To       string          `json:"to"`
	Accepted bool            `json:"accepted,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// NewChatPayload is the outbound payload of TypeNewChat.
type NewChatPayload struct {
	ChatID int64  `json:"chatId"`
	Name   string `json:"name"`
}

// ErrorPayload is the outbound payload of TypeError.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
