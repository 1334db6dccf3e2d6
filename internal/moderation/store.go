package moderation

import (
	"context"
	"database/sql"
	"fmt"
)

// maxLoggedChars caps how much of a message is kept in the log.
const maxLoggedChars = 100

// Store persists moderation decisions to the moderation_logs table for
// admin statistics. Writes are best-effort: callers log failures and
// move on, a lost log entry never changes a verdict.
type Store struct {
	db *sql.DB
}

// NewStore creates a moderation log store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Log records one moderation decision. action is "allowed" or "blocked".
func (s *Store) Log(ctx context.Context, message string, v Verdict, action string) error {
	truncated := []rune(message)
	if len(truncated) > maxLoggedChars {
		truncated = truncated[:maxLoggedChars]
	}

	const query = `
		INSERT INTO moderation_logs (message, score, content_type, action)
		VALUES ($1, $2, $3, $4)`

	_, err := s.db.ExecContext(ctx, query, string(truncated), v.Score, string(v.ContentType), action)
	if err != nil {
		return fmt.Errorf("moderation: log: %w", err)
	}
	return nil
}

// Stats summarizes moderation activity.
type Stats struct {
	TotalChecks int            `json:"total_checks"`
	Blocked     int            `json:"blocked"`
	Allowed     int            `json:"allowed"`
	Types       map[string]int `json:"types"`
}

// GetStats aggregates the moderation log by outcome and content type.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	const query = `
		SELECT content_type,
		       COUNT(*),
		       SUM(CASE WHEN action = 'blocked' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN action = 'allowed' THEN 1 ELSE 0 END)
		FROM moderation_logs
		GROUP BY content_type`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("moderation: stats: %w", err)
	}
	defer rows.Close()

	stats := &Stats{Types: make(map[string]int)}
	for rows.Next() {
		var contentType string
		var count, blocked, allowed int
		if err := rows.Scan(&contentType, &count, &blocked, &allowed); err != nil {
			return nil, fmt.Errorf("moderation: stats scan: %w", err)
		}
		stats.Types[contentType] = count
		stats.TotalChecks += count
		stats.Blocked += blocked
		stats.Allowed += allowed
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("moderation: stats rows: %w", err)
	}
	return stats, nil
}
