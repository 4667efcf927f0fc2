package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/platinummonkey/identity/pkg/agents"
	"github.com/platinummonkey/identity/pkg/auth"
	"github.com/platinummonkey/identity/pkg/contextkeys"
	"github.com/platinummonkey/identity/pkg/httputil"
	"github.com/platinummonkey/identity/pkg/observability"
	"github.com/platinummonkey/identity/pkg/sessions"
)

// TokenVerifier validates bearer access tokens
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*auth.Claims, error)
}

// SessionLoader resolves the session cookie of a request
type SessionLoader interface {
	Load(ctx context.Context, r *http.Request) (*sessions.Session, error)
}

// AgentResolver maps identities to agents
type AgentResolver interface {
	FindOrCreate(ctx context.Context, email, name string) (*agents.Agent, bool, error)
	Get(ctx context.Context, id int64) (*agents.Agent, error)
}

// AuthMiddleware authenticates requests by bearer token or session cookie
type AuthMiddleware struct {
	verifier  TokenVerifier
	sessions  SessionLoader
	agents    AgentResolver
	rootEmail string
	optional  bool // If true, allow requests without credentials
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(verifier TokenVerifier, sessions SessionLoader, agents AgentResolver, rootEmail string) *AuthMiddleware {
	return &AuthMiddleware{
		verifier:  verifier,
		sessions:  sessions,
		agents:    agents,
		rootEmail: rootEmail,
	}
}

// Optional returns a copy that lets anonymous requests through
func (m *AuthMiddleware) Optional() *AuthMiddleware {
	c := *m
	c.optional = true
	return &c
}

// AuthenticateBearer verifies raw and resolves its agent, creating the agent
// on first login
func (m *AuthMiddleware) AuthenticateBearer(ctx context.Context, raw string) (*auth.AuthContext, error) {
	claims, err := m.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}

	agent, created, err := m.agents.FindOrCreate(ctx, claims.Email, claims.Name)
	if err != nil {
		return nil, err
	}
	if created {
		observability.FromContext(ctx).
			WithField("agent_id", agent.ID).
			WithField("subject", claims.Subject).
			Info("agent created on first login")
	}

	agent.WithRoot(m.rootEmail)
	return &auth.AuthContext{
		Agent:   agent,
		Subject: claims.Subject,
		IsSuper: agent.IsSuper,
	}, nil
}

func (m *AuthMiddleware) authenticateSession(ctx context.Context, r *http.Request) (*auth.AuthContext, error) {
	session, err := m.sessions.Load(ctx, r)
	if err != nil {
		return nil, err
	}
	if session.AgentID == 0 {
		return nil, sessions.ErrSessionNotFound
	}

	agent, err := m.agents.Get(ctx, session.AgentID)
	if err != nil {
		return nil, err
	}

	agent.WithRoot(m.rootEmail)
	return &auth.AuthContext{
		Agent:     agent,
		Subject:   session.Data["subject"],
		SessionID: session.ID,
		IsSuper:   agent.IsSuper,
	}, nil
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var (
			authCtx *auth.AuthContext
			err     error
		)
		if raw, ok := httputil.BearerToken(r); ok {
			authCtx, err = m.AuthenticateBearer(ctx, raw)
		} else if m.sessions != nil {
			authCtx, err = m.authenticateSession(ctx, r)
		} else {
			err = sessions.ErrSessionNotFound
		}

		if err != nil {
			if m.optional && errors.Is(err, sessions.ErrSessionNotFound) {
				next.ServeHTTP(w, r)
				return
			}
			m.reject(w, r, err)
			return
		}

		ctx = contextkeys.WithAuth(ctx, authCtx)
		ctx = contextkeys.WithAgentID(ctx, authCtx.Agent.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sessions.ErrSessionNotFound):
		httputil.WriteUnauthorized(w, "authentication required")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingEmail):
		httputil.WriteUnauthorized(w, "invalid or expired token")
	case errors.Is(err, agents.ErrAgentNotFound), errors.Is(err, agents.ErrInvalidEmail):
		httputil.WriteUnauthorized(w, "unknown agent")
	default:
		observability.FromContext(r.Context()).WithError(err).Error("authentication failed")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	authCtx, _ := r.Context().Value(contextkeys.AuthKey).(*auth.AuthContext)
	return authCtx
}

// RequireAuth answers 401 when no agent is authenticated. Routes behind an
// Optional middleware use it to protect individual handlers.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authCtx := GetAuthContext(r); authCtx == nil || authCtx.Agent == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRoot answers 403 unless the authenticated agent is the root agent
func RequireRoot(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := GetAuthContext(r)
		if authCtx == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		if !authCtx.IsSuper {
			httputil.WriteForbidden(w, "root access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
