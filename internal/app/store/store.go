package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// User is a persisted account record.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Nickname     string    `json:"nickname"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Message is the canonical persisted message record. Its id and
// timestamp are assigned by the database at insert time; delivery fans
// out this record verbatim.
type Message struct {
	ID            int64     `json:"id"`
	ChatID        int64     `json:"chatId"`
	SenderID      string    `json:"senderId"`
	Text          string    `json:"text"`
	AttachmentKey string    `json:"attachmentKey,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ChatSummary is one row of a user's chat list.
type ChatSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	LastMessage string `json:"lastMessage"`
}

// Store wraps the connection pool with the query methods the rest of the
// application consumes.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// CreateUser inserts a new account and returns the stored record.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash, nickname string) (User, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, nickname)
		 VALUES ($1, $2, $3)
		 RETURNING id, username, password_hash, nickname, created_at`,
		username, passwordHash, nickname)

	return scanUser(row)
}

// GetUserByUsername fetches an account by its login name.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, nickname, created_at
		 FROM users WHERE username = $1`,
		username)

	return scanUser(row)
}

// GetUserByID fetches an account by its identifier.
func (s *Store) GetUserByID(ctx context.Context, id string) (User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, nickname, created_at
		 FROM users WHERE id = $1`,
		id)

	return scanUser(row)
}

// SearchUsers returns accounts whose username contains the query string.
func (s *Store) SearchUsers(ctx context.Context, query string, limit int) ([]User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, username, password_hash, nickname, created_at
		 FROM users
		 WHERE username ILIKE '%' || $1 || '%'
		 ORDER BY username
		 LIMIT $2`,
		query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateChat creates a chat and its membership rows in one transaction.
func (s *Store) CreateChat(ctx context.Context, name string, memberIDs []string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var chatID int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO chats (name) VALUES ($1) RETURNING id`,
		name).Scan(&chatID); err != nil {
		return 0, err
	}

	for _, memberID := range memberIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			chatID, memberID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return chatID, nil
}

// IsMember reports whether the user currently belongs to the chat.
func (s *Store) IsMember(ctx context.Context, userID string, chatID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM chat_members WHERE chat_id = $1 AND user_id = $2
		 )`,
		chatID, userID).Scan(&exists)
	return exists, err
}

// ChatExists reports whether a chat with the given id exists.
func (s *Store) ChatExists(ctx context.Context, chatID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM chats WHERE id = $1)`,
		chatID).Scan(&exists)
	return exists, err
}

// MemberIDs returns the user ids of every current member of the chat.
func (s *Store) MemberIDs(ctx context.Context, chatID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id FROM chat_members WHERE chat_id = $1`,
		chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, uuid.UUID(id.Bytes).String())
	}
	return ids, rows.Err()
}

// AppendMessage persists a message and returns the canonical record with
// its database-assigned id and timestamp.
func (s *Store) AppendMessage(ctx context.Context, chatID int64, senderID, text, attachmentKey string) (Message, error) {
	var attachment pgtype.Text
	if attachmentKey != "" {
		attachment = pgtype.Text{String: attachmentKey, Valid: true}
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO messages (chat_id, sender_id, text, attachment_key)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, chat_id, sender_id, text, attachment_key, created_at`,
		chatID, senderID, text, attachment)

	return scanMessage(row)
}

// ListChatsFor returns the chats the user belongs to, each with the text
// of its most recent message.
func (s *Store) ListChatsFor(ctx context.Context, userID string) ([]ChatSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.name,
		        COALESCE((SELECT m.text FROM messages m
		                  WHERE m.chat_id = c.id
		                  ORDER BY m.created_at DESC, m.id DESC
		                  LIMIT 1), '')
		 FROM chats c
		 JOIN chat_members cm ON cm.chat_id = c.id
		 WHERE cm.user_id = $1
		 ORDER BY c.id`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chats := []ChatSummary{}
	for rows.Next() {
		var c ChatSummary
		if err := rows.Scan(&c.ID, &c.Name, &c.LastMessage); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// ListMessages returns the chat's messages in persistence order:
// timestamp ascending, ties broken by insertion order.
func (s *Store) ListMessages(ctx context.Context, chatID int64) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, chat_id, sender_id, text, attachment_key, created_at
		 FROM messages
		 WHERE chat_id = $1
		 ORDER BY created_at, id`,
		chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u  User
		id pgtype.UUID
	)
	if err := row.Scan(&id, &u.Username, &u.PasswordHash, &u.Nickname, &u.CreatedAt); err != nil {
		return User{}, err
	}
	u.ID = uuid.UUID(id.Bytes).String()
	return u, nil
}

func scanMessage(row pgx.Row) (Message, error) {
	var (
		m          Message
		senderID   pgtype.UUID
		attachment pgtype.Text
	)
	if err := row.Scan(&m.ID, &m.ChatID, &senderID, &m.Text, &attachment, &m.Timestamp); err != nil {
		return Message{}, err
	}
	m.SenderID = uuid.UUID(senderID.Bytes).String()
	m.AttachmentKey = attachment.String
	return m, nil
}
