package chat

import "sync"

// Rooms maps a chat id to the set of connections subscribed to that
// chat's live events. Subscription is delivery-only: it never grants
// authorization, which the dispatcher checks against the persisted
// membership records on every join and send.
//
// A room exists exactly as long as it has subscribers. Rooms is safe for
// concurrent use from any number of connection-handling goroutines.
type Rooms struct {
	mu sync.RWMutex

	// subscribers maps chat id -> connection id -> client.
	subscribers map[int64]map[string]*Client

	// byConn maps connection id -> subscribed chat ids, so that
	// UnsubscribeAll does not scan every room.
	byConn map[string]map[int64]struct{}
}

// NewRooms returns an empty Rooms.
func NewRooms() *Rooms {
	return &Rooms{
		subscribers: make(map[int64]map[string]*Client),
		byConn:      make(map[string]map[int64]struct{}),
	}
}

// Subscribe adds the connection to the room, creating the room on first
// subscriber. Subscribing twice is a no-op.
func (r *Rooms) Subscribe(client *Client, chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.subscribers[chatID]
	if !ok {
		room = make(map[string]*Client)
		r.subscribers[chatID] = room
	}
	room[client.id] = client

	chats, ok := r.byConn[client.id]
	if !ok {
		chats = make(map[int64]struct{})
		r.byConn[client.id] = chats
	}
	chats[chatID] = struct{}{}
}

// Unsubscribe removes the connection from the room, dropping the room
// when it empties. Removing an absent subscription is a no-op.
func (r *Rooms) Unsubscribe(connID string, chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(connID, chatID)

	if chats, ok := r.byConn[connID]; ok {
		delete(chats, chatID)
		if len(chats) == 0 {
			delete(r.byConn, connID)
		}
	}
}

// UnsubscribeAll removes the connection from every room it is in.
// Disconnect handling calls this; it is idempotent.
func (r *Rooms) UnsubscribeAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for chatID := range r.byConn[connID] {
		r.removeLocked(connID, chatID)
	}
	delete(r.byConn, connID)
}

// removeLocked drops one subscription entry and garbage-collects the
// room if it became empty. Caller holds mu.
func (r *Rooms) removeLocked(connID string, chatID int64) {
	room, ok := r.subscribers[chatID]
	if !ok {
		return
	}

	delete(room, connID)
	if len(room) == 0 {
		delete(r.subscribers, chatID)
	}
}

// SubscribersOf returns a snapshot of the room's subscribers. The result
// is empty, never nil, for an unknown room.
func (r *Rooms) SubscribersOf(chatID int64) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.subscribers[chatID]

	snapshot := make([]*Client, 0, len(room))
	for _, client := range room {
		snapshot = append(snapshot, client)
	}
	return snapshot
}
