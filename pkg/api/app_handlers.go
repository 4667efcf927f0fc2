package api

import (
	"net/http"

	"github.com/platinummonkey/identity/pkg/clientapps"
	"github.com/platinummonkey/identity/pkg/httputil"
)

// CreateAppRequest is the body of POST /app
type CreateAppRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	RedirectURIs []string `json:"redirect_uris"`
}

// CreateAppResponse carries the client secret. It is never shown again.
type CreateAppResponse struct {
	*clientapps.ClientApp
	ClientSecret string `json:"client_secret"`
}

// listApps handles GET /app
func (s *Server) listApps(w http.ResponseWriter, r *http.Request) {
	apps, err := s.deps.Apps.ListForAgent(r.Context(), caller(r).Agent.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, apps)
}

// createApp handles POST /app
func (s *Server) createApp(w http.ResponseWriter, r *http.Request) {
	var req CreateAppRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	app, secret, err := s.deps.Apps.Create(r.Context(), caller(r).Agent.ID, req.Name, req.Description, req.RedirectURIs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, CreateAppResponse{ClientApp: app, ClientSecret: secret})
}

// deleteApp handles DELETE /app/{id}
func (s *Server) deleteApp(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := s.deps.Apps.Delete(r.Context(), id, caller(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
