package chat

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"skymessage/internal/app/store"
	"skymessage/internal/pkg/auth/jwt"
	"skymessage/internal/pkg/errs"
	"skymessage/internal/pkg/logx"
)

// MessageStore is the slice of the persistence collaborator the
// dispatcher consumes. Chat membership read through it is the only
// authorization truth; results are never cached across requests, so a
// membership change takes effect on the member's next join or send.
type MessageStore interface {
	ChatExists(ctx context.Context, chatID int64) (bool, error)
	IsMember(ctx context.Context, userID string, chatID int64) (bool, error)
	AppendMessage(ctx context.Context, chatID int64, senderID, text, attachmentKey string) (store.Message, error)
	MemberIDs(ctx context.Context, chatID int64) ([]string, error)
}

// Dispatcher is the control surface for inbound events: it validates
// them, drives persistence, and fans results out to the right
// connections.
//
// A send-message request moves through Received, Authorized, Persisted
// and Delivered; authorization failure terminates it as Rejected and a
// store failure as PersistFailed. A message that fails to persist never
// reaches any client.
type Dispatcher struct {
	registry *Registry
	rooms    *Rooms
	store    MessageStore

	jwtSecret string

	// chatLocks serializes persist-plus-fanout per chat so delivery order
	// matches persistence order within a room. Sends to different chats
	// proceed independently. These locks are never taken while holding a
	// Registry or Rooms lock.
	chatLocksMu sync.Mutex
	chatLocks   map[int64]*sync.Mutex

	// deliveryFailures counts per-connection delivery losses. They are
	// never escalated to the sender.
	deliveryFailures atomic.Int64

	logger zerolog.Logger
}

// NewDispatcher wires the dispatcher to its collaborators.
func NewDispatcher(registry *Registry, rooms *Rooms, messageStore MessageStore, jwtSecret string) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		rooms:     rooms,
		store:     messageStore,
		jwtSecret: jwtSecret,
		chatLocks: make(map[int64]*sync.Mutex),
		logger:    logx.Logger().With().Str("component", "dispatcher").Logger(),
	}
}

// Authenticate validates the identity token and binds the connection.
// On success the client receives a TypeReady event.
func (d *Dispatcher) Authenticate(client *Client, token string) {
	payload, err := jwt.ParseToken(token, d.jwtSecret)
	if err != nil {
		d.logger.Warn().Err(err).Str("conn_id", client.id).Msg("Auth failed: invalid token")
		client.SendError(errs.NewError(errs.ErrUnauthorized))
		return
	}

	if bindErr := d.registry.Bind(client, payload.ID); bindErr != nil {
		client.SendError(bindErr)
		return
	}

	client.identity = payload.ID

	d.logger.Info().
		Str("conn_id", client.id).
		Str("user_id", payload.ID).
		Msg("Connection authenticated")

	client.SendEvent(TypeReady, ReadyPayload{
		UserID:   payload.ID,
		Username: payload.Username,
	})
}

// HandleJoin subscribes the connection to a chat's live events after
// verifying the chat exists and the identity is a current member.
// Rejection leaves the room state untouched.
func (d *Dispatcher) HandleJoin(ctx context.Context, client *Client, payload JoinPayload) {
	exists, err := d.store.ChatExists(ctx, payload.ChatID)
	if err != nil {
		d.logger.Error().Err(err).Int64("chat_id", payload.ChatID).Msg("Join: store lookup failed")
		client.SendError(errs.NewError(errs.ErrPersistFailed))
		return
	}
	if !exists {
		client.SendError(errs.NewError(errs.ErrChatNotFound))
		return
	}

	member, err := d.store.IsMember(ctx, client.identity, payload.ChatID)
	if err != nil {
		d.logger.Error().Err(err).Int64("chat_id", payload.ChatID).Msg("Join: membership lookup failed")
		client.SendError(errs.NewError(errs.ErrPersistFailed))
		return
	}
	if !member {
		client.SendError(errs.NewError(errs.ErrNotChatMember))
		return
	}

	d.rooms.Subscribe(client, payload.ChatID)

	d.logger.Info().
		Str("conn_id", client.id).
		Str("user_id", client.identity).
		Int64("chat_id", payload.ChatID).
		Msg("Connection joined room")
}

// HandleSend runs the send-message state machine: membership check,
// persist, then fan-out of the canonical record to the room's current
// subscribers. Per-connection delivery is best effort.
func (d *Dispatcher) HandleSend(ctx context.Context, client *Client, payload SendPayload) {
	if customErr := validateSend(payload); customErr != nil {
		client.SendError(customErr)
		return
	}

	// Serialize per chat so fan-out order matches persistence order.
	chatLock := d.lockForChat(payload.ChatID)
	chatLock.Lock()
	defer chatLock.Unlock()

	member, err := d.store.IsMember(ctx, client.identity, payload.ChatID)
	if err != nil {
		d.logger.Error().Err(err).Int64("chat_id", payload.ChatID).Msg("Send: membership lookup failed")
		client.SendError(errs.NewError(errs.ErrPersistFailed))
		return
	}
	if !member {
		client.SendError(errs.NewError(errs.ErrNotChatMember))
		return
	}

	record, err := d.store.AppendMessage(ctx, payload.ChatID, client.identity, payload.Text, payload.AttachmentKey)
	if err != nil {
		d.logger.Error().Err(err).Int64("chat_id", payload.ChatID).Msg("Send: persist failed")
		client.SendError(errs.NewError(errs.ErrPersistFailed))
		return
	}

	d.fanOutMessage(record)
}

// validateSend checks the request shape before any store call.
func validateSend(payload SendPayload) *errs.CustomError {
	if payload.Text == "" && payload.AttachmentKey == "" {
		return errs.NewError(errs.ErrMessageEmpty)
	}

	if len(payload.Text) > MaxContentBytes {
		return errs.NewError(errs.ErrMessageContentTooLong)
	}

	if payload.AttachmentKey != "" && !strings.HasPrefix(payload.AttachmentKey, AttachmentKeyPrefix(payload.ChatID)) {
		return errs.NewError(errs.ErrInvalidParams)
	}

	return nil
}

// fanOutMessage delivers the persisted record verbatim to the room's
// subscriber set as it exists right now. A failed delivery to one
// connection never affects the others and never rolls back persistence.
func (d *Dispatcher) fanOutMessage(record store.Message) {
	messageBytes, err := EncodeEvent(TypeMessage, record)
	if err != nil {
		d.logger.Error().Err(err).Int64("message_id", record.ID).Msg("Error marshaling message for fan-out")
		return
	}

	for _, subscriber := range d.rooms.SubscribersOf(record.ChatID) {
		if !subscriber.enqueue(messageBytes) {
			d.deliveryFailures.Add(1)
			d.logger.Warn().
				Str("conn_id", subscriber.id).
				Int64("message_id", record.ID).
				Msg("Delivery failed for subscriber")
		}
	}
}

// NotifyNewChat pushes a TypeNewChat event to every member of a freshly
// created chat that currently has live connections. Members without a
// connection discover the chat on their next chat-list fetch.
func (d *Dispatcher) NotifyNewChat(ctx context.Context, chatID int64, name string) {
	memberIDs, err := d.store.MemberIDs(ctx, chatID)
	if err != nil {
		d.logger.Error().Err(err).Int64("chat_id", chatID).Msg("New chat: member lookup failed")
		return
	}

	eventBytes, err := EncodeEvent(TypeNewChat, NewChatPayload{ChatID: chatID, Name: name})
	if err != nil {
		d.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Error marshaling new-chat event")
		return
	}

	for _, memberID := range memberIDs {
		for _, client := range d.registry.ConnectionsFor(memberID) {
			if !client.enqueue(eventBytes) {
				d.deliveryFailures.Add(1)
			}
		}
	}
}

// Disconnect removes the connection from every shared structure. Called
// exactly once per connection by the read pump's cleanup; calling it for
// an unknown connection is a no-op.
func (d *Dispatcher) Disconnect(client *Client) {
	d.rooms.UnsubscribeAll(client.id)

	if identity, ok := d.registry.UnbindAll(client.id); ok {
		d.logger.Info().
			Str("conn_id", client.id).
			Str("user_id", identity).
			Msg("Connection unbound")
	}
}

// DeliveryFailures returns the count of per-connection delivery losses.
func (d *Dispatcher) DeliveryFailures() int64 {
	return d.deliveryFailures.Load()
}

// lockForChat returns the mutex serializing sends for one chat,
// creating it on first use.
func (d *Dispatcher) lockForChat(chatID int64) *sync.Mutex {
	d.chatLocksMu.Lock()
	defer d.chatLocksMu.Unlock()

	lock, ok := d.chatLocks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		d.chatLocks[chatID] = lock
	}
	return lock
}
