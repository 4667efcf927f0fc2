package api

import (
	"net/http"

	"github.com/platinummonkey/identity/pkg/httputil"
	"github.com/platinummonkey/identity/pkg/invitations"
	"github.com/platinummonkey/identity/pkg/teams"
)

// listTeams handles GET /team
func (s *Server) listTeams(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Teams.ListForAgent(r.Context(), caller(r).Agent.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*teams.AgentTeam{}
	}
	httputil.WriteSuccess(w, list)
}

// listAllTeams handles GET /team/admin
func (s *Server) listAllTeams(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Teams.ListTeams(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*teams.Team{}
	}
	httputil.WriteSuccess(w, list)
}

// createTeam handles POST /team
func (s *Server) createTeam(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.OrganizationID <= 0 {
		httputil.WriteBadRequest(w, "organization_id required")
		return
	}
	ctx := r.Context()

	if _, err := s.deps.Orgs.GetOrganization(ctx, req.OrganizationID); err != nil {
		s.writeError(w, r, err)
		return
	}

	team, err := s.deps.Teams.CreateTeam(ctx, req.OrganizationID, req.Name, caller(r).Agent.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, team)
}

// getTeam handles GET /team/{id}
func (s *Server) getTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	team, err := s.deps.Teams.GetTeam(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireMember(ctx, s.deps.TeamMembers, team.ID, caller(r)); err != nil {
		s.writeError(w, r, err)
		return
	}

	members, err := s.deps.TeamMembers.List(ctx, team.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	team.Members = members
	httputil.WriteSuccess(w, team)
}

// renameTeam handles PATCH /team
func (s *Server) renameTeam(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.ID <= 0 {
		httputil.WriteBadRequest(w, "id required")
		return
	}
	ctx := r.Context()

	team, err := s.deps.Teams.GetTeam(ctx, req.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireManager(caller(r), team.CreatorID); err != nil {
		s.writeError(w, r, err)
		return
	}

	oldName, err := s.deps.Teams.RenameTeam(ctx, team.ID, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	renamed, err := s.deps.Teams.GetTeam(ctx, team.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.propagateRename(ctx, invitations.TypeTeam, oldName, renamed.Name)

	httputil.WriteSuccess(w, renamed)
}

// deleteTeam handles DELETE /team/{id}
func (s *Server) deleteTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	team, err := s.deps.Teams.GetTeam(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireManager(caller(r), team.CreatorID); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.deps.Teams.DeleteTeam(ctx, team.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.withdraw(ctx, invitations.TypeTeam, team.Name)
	httputil.WriteNoContent(w)
}

// inviteToTeam handles PUT /team/{id}/agent
func (s *Server) inviteToTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req InviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	ctx := r.Context()
	me := caller(r)

	team, err := s.deps.Teams.GetTeam(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireMember(ctx, s.deps.TeamMembers, team.ID, me); err != nil {
		s.writeError(w, r, err)
		return
	}

	invs, err := s.deps.Invitations.InviteToTeam(ctx, team, me.Agent, req.recipients())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, invs)
}

// removeTeamMember handles DELETE /team/{id}/agent/{agentId}
func (s *Server) removeTeamMember(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	agentID, ok := httputil.ParsePathInt64OrError(w, r, "agentId")
	if !ok {
		return
	}
	ctx := r.Context()
	me := caller(r)

	team, err := s.deps.Teams.GetTeam(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if agentID != me.Agent.ID {
		if err := requireManager(me, team.CreatorID); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	if err := s.deps.TeamMembers.Remove(ctx, team.ID, agentID, team.CreatorID); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
