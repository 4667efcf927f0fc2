package sessions

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// DefaultCookieName is the session cookie name
const DefaultCookieName = "connect.sid"

// IDGenerator produces random session IDs
type IDGenerator interface {
	GenerateSessionID() (string, error)
}

// ManagerConfig configures the session cookie
type ManagerConfig struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Manager issues, loads and destroys session cookies
type Manager struct {
	store  Store
	ids    IDGenerator
	config ManagerConfig
	now    func() time.Time
}

// NewManager creates a manager storing sessions in store
func NewManager(store Store, ids IDGenerator, config ManagerConfig) *Manager {
	if config.CookieName == "" {
		config.CookieName = DefaultCookieName
	}
	if config.TTL <= 0 {
		config.TTL = 14 * 24 * time.Hour
	}
	return &Manager{store: store, ids: ids, config: config, now: time.Now}
}

// Store returns the backing store
func (m *Manager) Store() Store {
	return m.store
}

// Create starts a session for agentID and sets the cookie on w
func (m *Manager) Create(ctx context.Context, w http.ResponseWriter, agentID int64, data map[string]string) (*Session, error) {
	sid, err := m.ids.GenerateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	session := &Session{
		ID:      sid,
		AgentID: agentID,
		Data:    data,
		Expires: m.now().Add(m.config.TTL).UTC().Truncate(time.Second),
	}
	if err := m.store.Save(ctx, session); err != nil {
		return nil, err
	}

	http.SetCookie(w, m.cookie(sid, session.Expires))
	return session, nil
}

// Load returns the session named by the request cookie
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	c, err := r.Cookie(m.config.CookieName)
	if err != nil || c.Value == "" {
		return nil, ErrSessionNotFound
	}
	return m.store.Get(ctx, c.Value)
}

// Destroy deletes the request's session, if any, and clears the cookie
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if c, err := r.Cookie(m.config.CookieName); err == nil && c.Value != "" {
		if err := m.store.Destroy(ctx, c.Value); err != nil {
			return err
		}
	}

	expired := m.cookie("", time.Unix(0, 0))
	expired.MaxAge = -1
	http.SetCookie(w, expired)
	return nil
}

// Purge removes expired sessions from the store
func (m *Manager) Purge(ctx context.Context) (int64, error) {
	return m.store.Purge(ctx, m.now())
}

func (m *Manager) cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     m.config.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.config.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
