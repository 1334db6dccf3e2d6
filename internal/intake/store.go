package intake

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/speakfree/reporting/internal/dialogue"
)

// Conversation is one row of ai_conversations.
type Conversation struct {
	SessionID   string     `json:"session_id"`
	AccessCode  string     `json:"-"`
	Status      string     `json:"status"` // active | completed
	ReportCode  string     `json:"report_code,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ConversationSummary is a Conversation with listing extras.
type ConversationSummary struct {
	Conversation
	MessageCount int    `json:"message_count"`
	FirstMessage string `json:"first_message,omitempty"`
}

// Message is one row of ai_messages.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"` // user | assistant | admin
	Text      string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ConvStore persists conversations and their transcripts in PostgreSQL.
type ConvStore struct {
	db *sql.DB
}

// NewConvStore creates a conversation store backed by the given database.
func NewConvStore(db *sql.DB) *ConvStore {
	return &ConvStore{db: db}
}

// CreateConversation registers a new active conversation.
func (s *ConvStore) CreateConversation(ctx context.Context, sessionID, accessCode string) error {
	const query = `
		INSERT INTO ai_conversations (session_id, access_code, status)
		VALUES ($1, $2, 'active')`

	if _, err := s.db.ExecContext(ctx, query, sessionID, accessCode); err != nil {
		return fmt.Errorf("intake: create conversation: %w", err)
	}
	return nil
}

// AppendMessage stores one transcript entry with a context snapshot.
func (s *ConvStore) AppendMessage(ctx context.Context, sessionID, role, text string, c *dialogue.Context) error {
	var contextJSON []byte
	if c != nil {
		var err error
		contextJSON, err = json.Marshal(c)
		if err != nil {
			return fmt.Errorf("intake: marshal context: %w", err)
		}
	}

	const query = `
		INSERT INTO ai_messages (session_id, role, message, context_data)
		VALUES ($1, $2, $3, $4)`

	if _, err := s.db.ExecContext(ctx, query, sessionID, role, text, contextJSON); err != nil {
		return fmt.Errorf("intake: append message: %w", err)
	}
	return nil
}

// MarkCompleted records the created report on the conversation.
func (s *ConvStore) MarkCompleted(ctx context.Context, sessionID, reportCode string) error {
	const query = `
		UPDATE ai_conversations
		SET status = 'completed', report_code = $2, completed_at = NOW()
		WHERE session_id = $1`

	if _, err := s.db.ExecContext(ctx, query, sessionID, reportCode); err != nil {
		return fmt.Errorf("intake: mark completed: %w", err)
	}
	return nil
}

// Reactivate flips a conversation back to active, used when an admin
// continues the discussion.
func (s *ConvStore) Reactivate(ctx context.Context, sessionID string) error {
	const query = `
		UPDATE ai_conversations
		SET status = 'active'
		WHERE session_id = $1`

	if _, err := s.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("intake: reactivate: %w", err)
	}
	return nil
}

// BySession returns a conversation, or nil when the session is unknown.
func (s *ConvStore) BySession(ctx context.Context, sessionID string) (*Conversation, error) {
	const query = `
		SELECT session_id, access_code, status, COALESCE(report_code, ''), created_at, completed_at
		FROM ai_conversations
		WHERE session_id = $1`

	return s.scanConversation(s.db.QueryRowContext(ctx, query, sessionID))
}

// ByAccessCode returns the conversation for an access code, or nil.
func (s *ConvStore) ByAccessCode(ctx context.Context, accessCode string) (*Conversation, error) {
	const query = `
		SELECT session_id, access_code, status, COALESCE(report_code, ''), created_at, completed_at
		FROM ai_conversations
		WHERE access_code = $1`

	return s.scanConversation(s.db.QueryRowContext(ctx, query, accessCode))
}

func (s *ConvStore) scanConversation(row *sql.Row) (*Conversation, error) {
	var conv Conversation
	var completedAt sql.NullTime
	err := row.Scan(&conv.SessionID, &conv.AccessCode, &conv.Status, &conv.ReportCode, &conv.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("intake: scan conversation: %w", err)
	}
	if completedAt.Valid {
		conv.CompletedAt = &completedAt.Time
	}
	return &conv, nil
}

// Messages returns a session's transcript in order, optionally only the
// entries created after since.
func (s *ConvStore) Messages(ctx context.Context, sessionID string, since time.Time) ([]Message, error) {
	const query = `
		SELECT id, session_id, role, message, created_at
		FROM ai_messages
		WHERE session_id = $1 AND created_at > $2
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, sessionID, since)
	if err != nil {
		return nil, fmt.Errorf("intake: messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("intake: scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("intake: message rows: %w", err)
	}
	return messages, nil
}

// HasAdminReply reports whether an admin has written in the session.
func (s *ConvStore) HasAdminReply(ctx context.Context, sessionID string) (bool, error) {
	const query = `
		SELECT COUNT(*)
		FROM ai_messages
		WHERE session_id = $1 AND role = 'admin'`

	var count int
	if err := s.db.QueryRowContext(ctx, query, sessionID).Scan(&count); err != nil {
		return false, fmt.Errorf("intake: has admin reply: %w", err)
	}
	return count > 0, nil
}

// List returns the most recent conversations with message counts,
// newest first.
func (s *ConvStore) List(ctx context.Context, limit int) ([]ConversationSummary, error) {
	const query = `
		SELECT ac.session_id, ac.access_code, ac.status, COALESCE(ac.report_code, ''),
		       ac.created_at, ac.completed_at,
		       (SELECT COUNT(*) FROM ai_messages WHERE session_id = ac.session_id),
		       COALESCE((SELECT message FROM ai_messages
		                 WHERE session_id = ac.session_id AND role = 'user'
		                 ORDER BY created_at ASC LIMIT 1), '')
		FROM ai_conversations ac
		ORDER BY ac.created_at DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("intake: list conversations: %w", err)
	}
	defer rows.Close()

	var summaries []ConversationSummary
	for rows.Next() {
		var cs ConversationSummary
		var completedAt sql.NullTime
		if err := rows.Scan(&cs.SessionID, &cs.AccessCode, &cs.Status, &cs.ReportCode,
			&cs.CreatedAt, &completedAt, &cs.MessageCount, &cs.FirstMessage); err != nil {
			return nil, fmt.Errorf("intake: scan summary: %w", err)
		}
		if completedAt.Valid {
			cs.CompletedAt = &completedAt.Time
		}
		summaries = append(summaries, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("intake: summary rows: %w", err)
	}
	return summaries, nil
}

// Delete removes a conversation and its transcript.
func (s *ConvStore) Delete(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("intake: delete conversation: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ai_messages WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("intake: delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ai_conversations WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("intake: delete conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("intake: delete commit: %w", err)
	}
	return nil
}
