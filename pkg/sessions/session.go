// Package sessions keeps browser sessions behind the connect.sid cookie.
//
// Sessions live either in the PostgreSQL sessions table or in Redis. The
// PostgreSQL backend needs expired rows purged periodically (see
// pkg/maintenance); Redis expires keys on its own.
package sessions

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound is returned for unknown and expired sessions
var ErrSessionNotFound = errors.New("session not found")

// Session is one authenticated browser session
type Session struct {
	ID      string            `json:"sid"`
	AgentID int64             `json:"agent_id"`
	Data    map[string]string `json:"data"`
	Expires time.Time         `json:"expires"`
}

// Expired reports whether s is no longer valid at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.Expires)
}

// Store persists sessions
type Store interface {
	// Get returns an unexpired session or ErrSessionNotFound
	Get(ctx context.Context, sid string) (*Session, error)
	// Save creates or replaces a session
	Save(ctx context.Context, session *Session) error
	// Destroy removes a session, unknown IDs are not an error
	Destroy(ctx context.Context, sid string) error
	// Purge removes sessions expired at now and returns how many
	Purge(ctx context.Context, now time.Time) (int64, error)
}
