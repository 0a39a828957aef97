package store

import (
	"context"
	"fmt"
)

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FindOrCreateSession returns the session for a channel, creating it when a
// channel speaks for the first time.
func (s *Store) FindOrCreateSession(ctx context.Context, platform, channelID string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `
		INSERT INTO sessions (id, platform, channel_id, status)
		VALUES (gen_random_uuid(), $1, $2, 'active')
		ON CONFLICT (platform, channel_id)
		DO UPDATE SET status = 'active'
		RETURNING id`,
		platform, channelID,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("find or create session: %w", err)
	}
	return id, nil
}

// AppendMessage stores one turn in the given session.
func (s *Store) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO messages (id, session_id, role, content)
		VALUES (gen_random_uuid(), $1, $2, $3)`,
		sessionID, role, content,
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// RecentContext retrieves the last n messages of a session in chronological
// order, ready to thread into a model prompt.
func (s *Store) RecentContext(ctx context.Context, sessionID string, n int) ([]Message, error) {
	if n <= 0 {
		n = 20
	}

	rows, err := s.db.Query(ctx, `
		SELECT role, content FROM (
			SELECT role, content, created_at
			FROM messages
			WHERE session_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC`, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("recent context: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
