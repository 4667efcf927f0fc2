package api

import (
	"net/http"

	"github.com/platinummonkey/identity/pkg/httputil"
	"github.com/platinummonkey/identity/pkg/observability"
)

// login handles POST /login. The bearer token is exchanged for a session
// cookie so that browser requests can drop the Authorization header.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	raw, ok := httputil.BearerToken(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	authCtx, err := s.deps.Auth.AuthenticateBearer(r.Context(), raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	session, err := s.deps.Sessions.Create(r.Context(), w, authCtx.Agent.ID, map[string]string{
		"subject": authCtx.Subject,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	observability.FromContext(r.Context()).
		WithField("agent_id", authCtx.Agent.ID).
		WithField("expires", session.Expires).
		Info("session started")
	httputil.WriteSuccess(w, authCtx.Agent)
}

// logout handles POST /logout
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Destroy(r.Context(), w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
