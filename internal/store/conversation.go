// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Conversation groups an ordered sequence of messages for one user
// within a tenant.
type Conversation struct {
	ID            string
	Tenant        string
	User          string
	Title         string
	CreatedAt     time.Time
	LastMessageAt time.Time
	Archived      bool
}

// MessageRole distinguishes a user turn from an assistant turn.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one append-only turn in a conversation.
type Message struct {
	ID           string
	Conversation string
	Role         MessageRole
	Content      string
	Reasoning    []string
	Sources      []map[string]any
	Timestamp    time.Time
}

// ConversationStore manages the conversations table.
type ConversationStore struct {
	db *sql.DB
}

// NewConversationStore creates a new conversation store.
func NewConversationStore(db *sql.DB) (*ConversationStore, error) {
	store := &ConversationStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize conversations schema: %w", err)
	}
	return store, nil
}

func (s *ConversationStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		tenant TEXT NOT NULL,
		user TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		last_message_at DATETIME NOT NULL,
		archived BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_tenant_user ON conversations(tenant, user, last_message_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Create inserts a new conversation.
func (s *ConversationStore) Create(ctx context.Context, c *Conversation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, tenant, user, title, created_at, last_message_at, archived) VALUES (?, ?, ?, ?, ?, ?, FALSE)`,
		c.ID, c.Tenant, c.User, c.Title, c.CreatedAt, c.LastMessageAt,
	)
	return err
}

// Get returns a conversation by id, scoped to tenant.
func (s *ConversationStore) Get(ctx context.Context, tenant, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant, user, title, created_at, last_message_at, archived FROM conversations WHERE id = ? AND tenant = ?`, id, tenant)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ListByUser returns a user's conversations within a tenant, newest
// last-message first.
func (s *ConversationStore) ListByUser(ctx context.Context, tenant, user string) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant, user, title, created_at, last_message_at, archived FROM conversations WHERE tenant = ? AND user = ? ORDER BY last_message_at DESC`, tenant, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetArchived toggles the archived flag.
func (s *ConversationStore) SetArchived(ctx context.Context, tenant, id string, archived bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE conversations SET archived = ? WHERE id = ? AND tenant = ?`, archived, id, tenant)
	return err
}

// TouchLastMessageAt bumps last_message_at, called once per chat turn
// after the assistant reply is appended.
func (s *ConversationStore) TouchLastMessageAt(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE conversations SET last_message_at = ? WHERE id = ?`, at, id)
	return err
}

// DeriveTitle takes the first 80 characters of the first line of text,
// used to auto-title a conversation from its opening user message.
func DeriveTitle(text string) string {
	line := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		line = text[:idx]
	}
	line = strings.TrimSpace(line)
	r := []rune(line)
	if len(r) > 80 {
		r = r[:80]
	}
	return string(r)
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var c Conversation
	if err := row.Scan(&c.ID, &c.Tenant, &c.User, &c.Title, &c.CreatedAt, &c.LastMessageAt, &c.Archived); err != nil {
		return nil, err
	}
	return &c, nil
}

// MessageStore manages the messages table.
type MessageStore struct {
	db *sql.DB
}

// NewMessageStore creates a new message store.
func NewMessageStore(db *sql.DB) (*MessageStore, error) {
	store := &MessageStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize messages schema: %w", err)
	}
	return store, nil
}

func (s *MessageStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		reasoning TEXT NOT NULL DEFAULT '[]',
		sources TEXT NOT NULL DEFAULT '[]',
		ts DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation, ts ASC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append inserts a message, server-assigning its position via ts.
func (s *MessageStore) Append(ctx context.Context, m *Message) error {
	reasoning, err := json.Marshal(m.Reasoning)
	if err != nil {
		return fmt.Errorf("marshal reasoning: %w", err)
	}
	sources, err := json.Marshal(m.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation, role, content, reasoning, sources, ts) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Conversation, string(m.Role), m.Content, string(reasoning), string(sources), m.Timestamp,
	)
	return err
}

// ListByConversation returns every message in a conversation, oldest
// first.
func (s *MessageStore) ListByConversation(ctx context.Context, conversationID string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation, role, content, reasoning, sources, ts FROM messages WHERE conversation = ? ORDER BY ts ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMessage(row rowScanner) (*Message, error) {
	var m Message
	var role, reasoning, sources string
	if err := row.Scan(&m.ID, &m.Conversation, &role, &m.Content, &reasoning, &sources, &m.Timestamp); err != nil {
		return nil, err
	}
	m.Role = MessageRole(role)
	if err := json.Unmarshal([]byte(reasoning), &m.Reasoning); err != nil {
		return nil, fmt.Errorf("unmarshal reasoning: %w", err)
	}
	if err := json.Unmarshal([]byte(sources), &m.Sources); err != nil {
		return nil, fmt.Errorf("unmarshal sources: %w", err)
	}
	return &m, nil
}
