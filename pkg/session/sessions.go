package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"parley/pkg/llm"
)

// ErrNotFound is returned when a requested session does not exist.
var ErrNotFound = errors.New("session not found")

// Session is one persisted conversation transcript.
//
//nolint:govet // struct alignment optimization not critical for this type.
type Session struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Model     string        `json:"model"`
	Messages  []llm.Message `json:"messages"`
	Usage     llm.Usage     `json:"usage"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Summary is the listing view of a session, without the transcript body.
//
//nolint:govet // struct alignment optimization not critical for this type.
type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Create inserts a new empty session and returns it.
func (s *Store) Create(title, model string) (*Session, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, title, model)
		VALUES (?, ?, ?)
	`, id, title, model)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s.Get(id)
}

// Save persists the session's transcript and usage. The row must already
// exist; Create it first.
func (s *Store) Save(sess *Session) error {
	messages := sess.Messages
	if messages == nil {
		messages = []llm.Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	result, err := s.db.Exec(`
		UPDATE sessions
		SET title = ?, model = ?, messages_json = ?, message_count = ?,
		    input_tokens = ?, output_tokens = ?,
		    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
		WHERE id = ?
	`, sess.Title, sess.Model, string(data), len(messages),
		sess.Usage.InputTokens, sess.Usage.OutputTokens, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns a session by ID, transcript included.
// Returns ErrNotFound if the session does not exist.
func (s *Store) Get(id string) (*Session, error) {
	row := s.db.QueryRow(`
		SELECT id, title, model, messages_json, input_tokens, output_tokens,
		       created_at, updated_at
		FROM sessions
		WHERE id = ?
	`, id)

	var sess Session
	var messagesJSON string
	err := row.Scan(&sess.ID, &sess.Title, &sess.Model, &messagesJSON,
		&sess.Usage.InputTokens, &sess.Usage.OutputTokens,
		&sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if err := json.Unmarshal([]byte(messagesJSON), &sess.Messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages for session %s: %w", id, err)
	}
	return &sess, nil
}

// List returns summaries of all sessions, most recently updated first.
func (s *Store) List() ([]Summary, error) {
	rows, err := s.db.Query(`
		SELECT id, title, model, message_count, updated_at
		FROM sessions
		ORDER BY updated_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.Model, &sum.MessageCount, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session summary: %w", err)
		}
		summaries = append(summaries, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return summaries, nil
}

// Delete removes a session by ID.
// Returns ErrNotFound if the session does not exist.
func (s *Store) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
