package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"skymessage/internal/app/store"
	"skymessage/internal/pkg/auth/jwt"
	"skymessage/internal/pkg/errs"
)

const testSecret = "test_secret"

func newTestDispatcher(fake *fakeStore) (*Dispatcher, *Registry, *Rooms) {
	registry := NewRegistry()
	rooms := NewRooms()
	dispatcher := NewDispatcher(registry, rooms, fake, testSecret)
	return dispatcher, registry, rooms
}

func boundClient(t *testing.T, d *Dispatcher, registry *Registry, identity string) *Client {
	t.Helper()

	client := newTestClient(d, nil)
	require.Nil(t, registry.Bind(client, identity))
	client.identity = identity
	return client
}

func TestAuthenticateBindsAndAcks(t *testing.T) {
	fake := newFakeStore()
	dispatcher, registry, _ := newTestDispatcher(fake)

	token, err := jwt.GenerateToken(&jwt.Payload{ID: "user-1", Username: "alice"}, testSecret, jwt.UserIdentityExpiration)
	require.NoError(t, err)

	client := newTestClient(dispatcher, nil)
	dispatcher.Authenticate(client, token)

	event := readEvent(t, client)
	require.Equal(t, TypeReady, event.Type)

	var ready ReadyPayload
	require.NoError(t, json.Unmarshal(event.Payload, &ready))
	require.Equal(t, "user-1", ready.UserID)
	require.Equal(t, "alice", ready.Username)

	require.Equal(t, "user-1", client.identity)
	require.Len(t, registry.ConnectionsFor("user-1"), 1)
}

func TestAuthenticateRejectsInvalidToken(t *testing.T) {
	fake := newFakeStore()
	dispatcher, registry, _ := newTestDispatcher(fake)

	client := newTestClient(dispatcher, nil)
	dispatcher.Authenticate(client, "not-a-token")

	requireErrorEvent(t, client, errs.ErrUnauthorized)
	require.Empty(t, client.identity)
	require.Empty(t, registry.ConnectionsFor("user-1"))
}

func TestJoinUnknownChatRejected(t *testing.T) {
	fake := newFakeStore()
	dispatcher, registry, rooms := newTestDispatcher(fake)

	client := boundClient(t, dispatcher, registry, "user-1")
	dispatcher.HandleJoin(context.Background(), client, JoinPayload{ChatID: 7})

	requireErrorEvent(t, client, errs.ErrChatNotFound)
	require.Empty(t, rooms.SubscribersOf(7))
}

func TestJoinNonMemberRejectedWithoutStateChange(t *testing.T) {
	fake := newFakeStore()
	fake.addChat(7, "user-2")
	dispatcher, registry, rooms := newTestDispatcher(fake)

	client := boundClient(t, dispatcher, registry, "user-1")
	dispatcher.HandleJoin(context.Background(), client, JoinPayload{ChatID: 7})

	requireErrorEvent(t, client, errs.ErrNotChatMember)
	require.Empty(t, rooms.SubscribersOf(7))
}

func TestJoinMemberSubscribes(t *testing.T) {
	fake := newFakeStore()
	fake.addChat(7, "user-1")
	dispatcher, registry, rooms := newTestDispatcher(fake)

	client := boundClient(t, dispatcher, registry, "user-1")
	dispatcher.HandleJoin(context.Background(), client, JoinPayload{ChatID: 7})

	requireNoEvent(t, client)
	require.Len(t, rooms.SubscribersOf(7), 1)
}

func TestSendFromNonMemberRejected(t *testing.T) {
	fake := newFakeStore()
	fake.addChat(7, "user-2")
	dispatcher, registry, rooms := newTestDispatcher(fake)

	member := boundClient(t, dispatcher, registry, "user-2")
	rooms.Subscribe(member, 7)

	outsider := boundClient(t, dispatcher, registry, "user-1")
	dispatcher.HandleSend(context.Background(), outsider, SendPayload{ChatID: 7, Text: "hi"})

	requireErrorEvent(t, outsider, errs.ErrNotChatMember)
	require.Zero(t, fake.persistedCount())
	requireNoEvent(t, member)
}

func TestSendPersistsOnceAndFansOutToSubscribers(t *testing.T) {
	fake := newFakeStore()
	fake.addChat(7, "user-1", "user-2")
	dispatcher, registry, rooms := newTestDispatcher(fake)

	sender := boundClient(t, dispatcher, registry, "user-1")
	receiver := boundClient(t, dispatcher, registry, "user-2")
	bystander := boundClient(t, dispatcher, registry, "user-3")

	rooms.Subscribe(sender, 7)
	rooms.Subscribe(receiver, 7)

	dispatcher.HandleSend(context.Background(), sender, SendPayload{ChatID: 7, Text: "hi"})

	require.Equal(t, 1, fake.persistedCount())

	for _, client := range []*Client{sender, receiver} {
		event := readEvent(t, client)
		require.Equal(t, TypeMessage, event.Type)

		var record store.Message
		require.NoError(t, json.Unmarshal(event.Payload, &record))
		require.Equal(t, int64(7), record.ChatID)
		require.Equal(t, "user-1", record.SenderID)
		require.Equal(t, "hi", record.Text)
		require.NotZero(t, record.ID)
		require.False(t, record.Timestamp.IsZero())

		// Exactly one delivery per subscriber.
		requireNoEvent(t, client)
	}

	requireNoEvent(t, bystander)
}

func TestSendPersistFailureSurfacedWithoutFanOut(t *testing.T) {
	fake := newFakeStore()
	fake.addChat(7, "user-1", "user-2")
	fake.appendErr = errors.New("store unavailable")
	dispatcher, registry, rooms := newTestDispatcher(fake)

	sender := boundClient(t, dispatcher, registry, "user-1")
	receiver := boundClient(t, dispatcher, registry, "user-2")
	rooms.Subscribe(sender, 7)
	rooms.Subscribe(receiver, 7)

	dispatcher.HandleSend(context.Background(), sender, SendPayload{ChatID: 7, Text: "hi"})

	requireErrorEvent(t, sender, errs.ErrPersistFailed)
	require.Zero(t, fake.persistedCount())
	requireNoEvent(t, receiver)
}

func TestSendValidation(t *testing.T) {
	fake := newFakeStore()
	fake.addChat(7, "user-1")
	dispatcher, registry, _ := newTestDispatcher(fake)
	sender := boundClient(t, dispatcher, registry, "user-1")

	dispatcher.HandleSend(context.Background(), sender, SendPayload{ChatID: 7})
	requireErrorEvent(t, sender, errs.ErrMessageEmpty)

	long := make([]byte, MaxContentBytes+1)
	for i := range long {
		long[i] = 'a'
	}
	dispatcher.HandleSend(context.Background(), sender, SendPayload{ChatID: 7, Text: string(long)})
	requireErrorEvent(t, sender, errs.ErrMessageContentTooLong)

	dispatcher.HandleSend(context.Background(), sender, SendPayload{ChatID: 7, Text: "pic", AttachmentKey: "chats/8/abc.png"})
	requireErrorEvent(t, sender, errs.ErrInvalidParams)

	require.Zero(t, fake.persistedCount())
}

func TestConcurrentSendsSameChatDeliverInPersistOrder(t *testing.T) {
	fake := newFakeStore()
	fake.addChat(7, "user-1", "user-2")
	dispatcher, registry, rooms := newTestDispatcher(fake)

	alice := boundClient(t, dispatcher, registry, "user-1")
	bob := boundClient(t, dispatcher, registry, "user-2")
	receiver := boundClient(t, dispatcher, registry, "user-3")

	rooms.Subscribe(receiver, 7)

	const sendsPerUser = 20

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < sendsPerUser; i++ {
			dispatcher.HandleSend(context.Background(), alice, SendPayload{ChatID: 7, Text: "a"})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < sendsPerUser; i++ {
			dispatcher.HandleSend(context.Background(), bob, SendPayload{ChatID: 7, Text: "b"})
		}
	}()
	wg.Wait()

	require.Equal(t, 2*sendsPerUser, fake.persistedCount())

	var lastID int64
	for i := 0; i < 2*sendsPerUser; i++ {
		event := readEvent(t, receiver)
		require.Equal(t, TypeMessage, event.Type)

		var record store.Message
		require.NoError(t, json.Unmarshal(event.Payload, &record))
		require.Greater(t, record.ID, lastID, "delivery order must match persistence order")
		lastID = record.ID
	}
}

func TestDeliveryFailureDoesNotAffectOtherSubscribers(t *testing.T) {
	fake := newFakeStore()
	fake.addChat(7, "user-1", "user-2")
	dispatcher, registry, rooms := newTestDispatcher(fake)

	sender := boundClient(t, dispatcher, registry, "user-1")
	healthy := boundClient(t, dispatcher, registry, "user-2")
	gone := boundClient(t, dispatcher, registry, "user-2")

	rooms.Subscribe(healthy, 7)
	rooms.Subscribe(gone, 7)

	// The socket just closed but the room has not been cleaned yet.
	gone.closeSend()

	dispatcher.HandleSend(context.Background(), sender, SendPayload{ChatID: 7, Text: "hi"})

	event := readEvent(t, healthy)
	require.Equal(t, TypeMessage, event.Type)
	require.Equal(t, int64(1), dispatcher.DeliveryFailures())
	requireNoEvent(t, sender)
}

func TestDisconnectRemovesAllState(t *testing.T) {
	fake := newFakeStore()
	fake.addChat(7, "user-1")
	fake.addChat(8, "user-1")
	dispatcher, registry, rooms := newTestDispatcher(fake)

	client := boundClient(t, dispatcher, registry, "user-1")
	rooms.Subscribe(client, 7)
	rooms.Subscribe(client, 8)

	dispatcher.Disconnect(client)

	require.Empty(t, rooms.SubscribersOf(7))
	require.Empty(t, rooms.SubscribersOf(8))
	require.Empty(t, registry.ConnectionsFor("user-1"))

	// Disconnecting twice is a no-op.
	dispatcher.Disconnect(client)
}

func TestNotifyNewChatReachesConnectedMembers(t *testing.T) {
	fake := newFakeStore()
	fake.addChat(9, "user-1", "user-2", "user-3")
	dispatcher, registry, _ := newTestDispatcher(fake)

	alice := boundClient(t, dispatcher, registry, "user-1")
	bobPhone := boundClient(t, dispatcher, registry, "user-2")
	bobLaptop := boundClient(t, dispatcher, registry, "user-2")
	// user-3 has no live connections.

	dispatcher.NotifyNewChat(context.Background(), 9, "weekend plans")

	for _, client := range []*Client{alice, bobPhone, bobLaptop} {
		event := readEvent(t, client)
		require.Equal(t, TypeNewChat, event.Type)

		var payload NewChatPayload
		require.NoError(t, json.Unmarshal(event.Payload, &payload))
		require.Equal(t, int64(9), payload.ChatID)
		require.Equal(t, "weekend plans", payload.Name)
	}
}

// Full round trip: both members joined, one disconnects, the survivor
// still receives and history remains complete.
func TestTwoMemberChatScenario(t *testing.T) {
	fake := newFakeStore()
	fake.addChat(7, "user-1", "user-2")
	dispatcher, registry, rooms := newTestDispatcher(fake)

	alice := boundClient(t, dispatcher, registry, "user-1")
	bob := boundClient(t, dispatcher, registry, "user-2")

	dispatcher.HandleJoin(context.Background(), alice, JoinPayload{ChatID: 7})
	dispatcher.HandleJoin(context.Background(), bob, JoinPayload{ChatID: 7})
	require.Len(t, rooms.SubscribersOf(7), 2)

	dispatcher.HandleSend(context.Background(), alice, SendPayload{ChatID: 7, Text: "hi"})

	for _, client := range []*Client{alice, bob} {
		event := readEvent(t, client)
		require.Equal(t, TypeMessage, event.Type)

		var record store.Message
		require.NoError(t, json.Unmarshal(event.Payload, &record))
		require.Equal(t, "hi", record.Text)
		require.Equal(t, "user-1", record.SenderID)
	}

	dispatcher.Disconnect(bob)

	dispatcher.HandleSend(context.Background(), alice, SendPayload{ChatID: 7, Text: "bye"})

	event := readEvent(t, alice)
	require.Equal(t, TypeMessage, event.Type)
	requireNoEvent(t, bob)

	// Both messages are in the log for Bob's history fetch on reconnect.
	require.Equal(t, 2, fake.persistedCount())
	require.Equal(t, "hi", fake.messages[0].Text)
	require.Equal(t, "bye", fake.messages[1].Text)
}
