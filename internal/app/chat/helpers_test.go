package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"skymessage/internal/app/store"
)

// fakeStore is an in-memory MessageStore for dispatcher tests.
type fakeStore struct {
	mu        sync.Mutex
	chats     map[int64]bool
	members   map[int64]map[string]bool
	messages  []store.Message
	nextID    int64
	appendErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chats:   make(map[int64]bool),
		members: make(map[int64]map[string]bool),
	}
}

func (f *fakeStore) addChat(chatID int64, memberIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.chats[chatID] = true
	f.members[chatID] = make(map[string]bool)
	for _, id := range memberIDs {
		f.members[chatID][id] = true
	}
}

func (f *fakeStore) ChatExists(ctx context.Context, chatID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chats[chatID], nil
}

func (f *fakeStore) IsMember(ctx context.Context, userID string, chatID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[chatID][userID], nil
}

func (f *fakeStore) AppendMessage(ctx context.Context, chatID int64, senderID, text, attachmentKey string) (store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.appendErr != nil {
		return store.Message{}, f.appendErr
	}

	f.nextID++
	record := store.Message{
		ID:            f.nextID,
		ChatID:        chatID,
		SenderID:      senderID,
		Text:          text,
		AttachmentKey: attachmentKey,
		Timestamp:     time.Now(),
	}
	f.messages = append(f.messages, record)
	return record, nil
}

func (f *fakeStore) MemberIDs(ctx context.Context, chatID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := []string{}
	for id := range f.members[chatID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) persistedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// newTestClient builds a client without a real socket. Delivery only
// touches the send queue, so tests read events straight from it.
func newTestClient(d *Dispatcher, r *Relay) *Client {
	return NewClient(nil, d, r)
}

// readEvent pops the next queued event from the client, failing the test
// when nothing arrives in time.
func readEvent(t *testing.T, c *Client) Event {
	t.Helper()

	select {
	case raw := <-c.send:
		var event Event
		require.NoError(t, json.Unmarshal(raw, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

// requireNoEvent asserts the client's queue stays empty.
func requireNoEvent(t *testing.T, c *Client) {
	t.Helper()

	select {
	case raw := <-c.send:
		t.Fatalf("unexpected event queued: %s", raw)
	default:
	}
}

// requireErrorEvent reads one event and asserts it is a TypeError with
// the given business code.
func requireErrorEvent(t *testing.T, c *Client, code int) {
	t.Helper()

	event := readEvent(t, c)
	require.Equal(t, TypeError, event.Type)

	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	require.Equal(t, code, payload.Code)
}
