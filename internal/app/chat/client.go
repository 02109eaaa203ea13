package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"skymessage/internal/pkg/errs"
	"skymessage/internal/pkg/logx"
	"skymessage/internal/pkg/randx"
)

const (
	// writeWait is the timeout for a single write to the WebSocket.
	writeWait = 10 * time.Second

	// pongWait is the maximum wait for a Pong before the read fails.
	pongWait = 60 * time.Second

	// pingPeriod is the heartbeat interval; must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps inbound frames in bytes.
	maxMessageSize = 8192

	// MaxContentBytes caps the text content of a chat message.
	MaxContentBytes = 5000

	// sendQueueSize is the per-connection outbound buffer. A connection
	// that cannot drain this many events counts as a failed delivery.
	sendQueueSize = 256
)

// Client represents one live WebSocket session. A fresh connection is
// unauthenticated; the first event must be TypeAuth, which binds it to a
// user identity for the rest of its lifetime.
type Client struct {
	// id is the process-unique connection identifier.
	id string

	conn *websocket.Conn

	dispatcher *Dispatcher
	relay      *Relay

	// identity is the bound user id. It is written once by the auth
	// handler and read only from the read-pump goroutine.
	identity string

	// send queues outbound frames for the write pump.
	send chan []byte

	// mu guards closed so delivery never writes to a closed channel.
	mu     sync.Mutex
	closed bool

	cleanupOnce sync.Once

	logger zerolog.Logger
}

// NewClient wraps an upgraded WebSocket connection.
func NewClient(conn *websocket.Conn, dispatcher *Dispatcher, relay *Relay) *Client {
	connID := randx.NewID()

	return &Client{
		id:         connID,
		conn:       conn,
		dispatcher: dispatcher,
		relay:      relay,
		send:       make(chan []byte, sendQueueSize),
		logger:     logx.Logger().With().Str("conn_id", connID).Logger(),
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string {
	return c.id
}

// Identity returns the bound user id, empty until authenticated.
func (c *Client) Identity() string {
	return c.identity
}

// ReadPump reads inbound frames until the connection drops, then runs
// disconnect cleanup exactly once.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Connection closed unexpectedly")
			}
			break
		}

		c.handleInbound(messageBytes)
	}
}

// cleanupOnDisconnect tears the connection out of every shared structure.
// Safe to call more than once; only the first call does work.
func (c *Client) cleanupOnDisconnect() {
	c.cleanupOnce.Do(func() {
		c.logger.Info().Msg("Connection cleanup starting")

		c.dispatcher.Disconnect(c)
		c.closeSend()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error")
		}
	})
}

// handleInbound parses the envelope and routes the event. Store calls
// run under a background context on purpose: a disconnect mid-flight
// must not cancel an in-progress persist.
func (c *Client) handleInbound(messageBytes []byte) {
	var event Event
	if err := json.Unmarshal(messageBytes, &event); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		c.SendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	ctx := context.Background()

	if c.identity == "" && event.Type != TypeAuth {
		c.SendError(errs.NewError(errs.ErrUnauthorized))
		return
	}

	switch event.Type {
	case TypeAuth:
		var payload AuthPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			c.SendError(errs.NewError(errs.ErrInvalidParams))
			return
		}
		c.dispatcher.Authenticate(c, payload.Token)

	case TypeJoin:
		var payload JoinPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			c.SendError(errs.NewError(errs.ErrInvalidParams))
			return
		}
		c.dispatcher.HandleJoin(ctx, c, payload)

	case TypeMessage:
		var payload SendPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			c.SendError(errs.NewError(errs.ErrInvalidParams))
			return
		}
		c.dispatcher.HandleSend(ctx, c, payload)

	case TypeRing, TypeAnswer, TypeEnd:
		var payload SignalPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			c.SendError(errs.NewError(errs.ErrInvalidParams))
			return
		}
		c.relay.HandleSignal(c, event.Type, payload)

	default:
		c.logger.Warn().Str("event_type", string(event.Type)).Msg("Client sent unsupported event type")
	}
}

// WritePump drains the send queue to the socket and keeps the heartbeat.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline")
				return
			}

			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug().Err(err).Msg("Error writing close message")
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn().Err(err).Msg("Error writing message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug().Err(err).Msg("Error writing ping")
				return
			}
		}
	}
}

// enqueue offers a frame to the send queue without blocking. It reports
// false when the connection is closed or its queue is full; callers
// treat that as a per-connection delivery failure.
func (c *Client) enqueue(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// closeSend closes the send queue exactly once, which ends the write pump.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// SendEvent marshals and queues an event for this connection.
func (c *Client) SendEvent(eventType EventType, payload any) bool {
	messageBytes, err := EncodeEvent(eventType, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("Error marshaling event")
		return false
	}
	return c.enqueue(messageBytes)
}

// SendError queues a TypeError event carrying the business error.
func (c *Client) SendError(customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	if !c.SendEvent(TypeError, ErrorPayload{Code: customErr.Code, Message: customErr.Message}) {
		c.logger.Warn().Int("code", customErr.Code).Msg("Failed to queue error event")
	}
}
