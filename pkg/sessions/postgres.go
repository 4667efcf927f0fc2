package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PostgresStore keeps sessions in the sessions table
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStore creates a store over db
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// Get returns an unexpired session
func (s *PostgresStore) Get(ctx context.Context, sid string) (*Session, error) {
	query := `SELECT sid, agent_id, data, expires FROM sessions WHERE sid = $1 AND expires > $2`

	var (
		session Session
		agentID sql.NullInt64
		data    string
	)
	err := s.db.QueryRowContext(ctx, query, sid, s.now().UTC()).Scan(&session.ID, &agentID, &data, &session.Expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session.AgentID = agentID.Int64
	if err := json.Unmarshal([]byte(data), &session.Data); err != nil {
		return nil, fmt.Errorf("failed to decode session data: %w", err)
	}
	return &session, nil
}

// Save upserts session keyed by its ID
func (s *PostgresStore) Save(ctx context.Context, session *Session) error {
	data, err := encodeData(session.Data)
	if err != nil {
		return err
	}

	var agentID sql.NullInt64
	if session.AgentID != 0 {
		agentID = sql.NullInt64{Int64: session.AgentID, Valid: true}
	}

	query := `INSERT INTO sessions (sid, agent_id, data, expires, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (sid) DO UPDATE
		SET agent_id = EXCLUDED.agent_id, data = EXCLUDED.data,
			expires = EXCLUDED.expires, updated_at = EXCLUDED.updated_at`

	_, err = s.db.ExecContext(ctx, query, session.ID, agentID, data, session.Expires.UTC(), s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Destroy deletes a session
func (s *PostgresStore) Destroy(ctx context.Context, sid string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE sid = $1`, sid); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// Purge deletes sessions that expired at or before now
func (s *PostgresStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged sessions: %w", err)
	}
	return n, nil
}

func encodeData(data map[string]string) (string, error) {
	if data == nil {
		return "{}", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode session data: %w", err)
	}
	return string(b), nil
}
