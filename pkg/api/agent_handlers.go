package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/platinummonkey/identity/pkg/httputil"
)

// UpdateAgentRequest is the body of PATCH /agent
type UpdateAgentRequest struct {
	Name          *string         `json:"name"`
	SocialProfile json.RawMessage `json:"social_profile"`
}

// getCurrentAgent handles GET /agent
func (s *Server) getCurrentAgent(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, caller(r).Agent)
}

// updateCurrentAgent handles PATCH /agent. Omitted fields keep their value.
func (s *Server) updateCurrentAgent(w http.ResponseWriter, r *http.Request) {
	var req UpdateAgentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	me := caller(r)
	name := me.Agent.Name
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
	}

	agent, err := s.deps.Agents.Update(r.Context(), me.Agent.ID, name, req.SocialProfile)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	agent.IsSuper = me.IsSuper
	httputil.WriteSuccess(w, agent)
}

// listAgents handles GET /agent/admin
func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Agents.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	for _, agent := range list {
		agent.WithRoot(s.deps.RootEmail)
	}
	httputil.WriteSuccess(w, list)
}

// getAgent handles GET /agent/{id}
func (s *Server) getAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	agent, err := s.deps.Agents.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, agent.WithRoot(s.deps.RootEmail))
}

// deleteAgent handles DELETE /agent/{id}
func (s *Server) deleteAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if id == caller(r).Agent.ID {
		httputil.WriteBadRequest(w, "the root agent cannot delete itself")
		return
	}

	if err := s.deps.Agents.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
