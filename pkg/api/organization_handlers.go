package api

import (
	"context"
	"net/http"

	"github.com/platinummonkey/identity/pkg/auth"
	"github.com/platinummonkey/identity/pkg/httputil"
	"github.com/platinummonkey/identity/pkg/invitations"
	"github.com/platinummonkey/identity/pkg/observability"
	"github.com/platinummonkey/identity/pkg/orgs"
	"github.com/platinummonkey/identity/pkg/teams"
)

// CreateGroupRequest is the body of POST /organization and POST /team
type CreateGroupRequest struct {
	Name           string `json:"name"`
	OrganizationID int64  `json:"organization_id,omitempty"`
}

// RenameRequest is the body of PATCH /organization and PATCH /team
type RenameRequest struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// InviteRequest is the body of PUT /organization/{id}/agent and
// PUT /team/{id}/agent. Either field may be used.
type InviteRequest struct {
	Email  string   `json:"email,omitempty"`
	Emails []string `json:"emails,omitempty"`
}

func (req InviteRequest) recipients() []string {
	out := make([]string, 0, len(req.Emails)+1)
	if req.Email != "" {
		out = append(out, req.Email)
	}
	return append(out, req.Emails...)
}

// OrganizationDetail is an organization with its members and teams
type OrganizationDetail struct {
	*orgs.Organization
	Teams []*teams.Team `json:"teams"`
}

// requireMember returns ErrNotMember unless the caller is root or a verified
// member of groupID
func requireMember(ctx context.Context, members MemberStore, groupID int64, me *auth.AuthContext) error {
	if me.IsSuper {
		return nil
	}
	ok, err := members.IsVerifiedMember(ctx, groupID, me.Agent.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}

// requireManager returns ErrForbidden unless the caller created the group or is root
func requireManager(me *auth.AuthContext, creatorID int64) error {
	if !me.CanManage(creatorID) {
		return ErrForbidden
	}
	return nil
}

// listOrganizations handles GET /organization
func (s *Server) listOrganizations(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Orgs.ListForAgent(r.Context(), caller(r).Agent.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*orgs.AgentOrganization{}
	}
	httputil.WriteSuccess(w, list)
}

// listAllOrganizations handles GET /organization/admin
func (s *Server) listAllOrganizations(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Orgs.ListOrganizations(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*orgs.Organization{}
	}
	httputil.WriteSuccess(w, list)
}

// createOrganization handles POST /organization
func (s *Server) createOrganization(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	org, err := s.deps.Orgs.CreateOrganization(r.Context(), req.Name, caller(r).Agent.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, org)
}

// getOrganization handles GET /organization/{id}
func (s *Server) getOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	org, err := s.deps.Orgs.GetOrganization(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireMember(ctx, s.deps.OrgMembers, org.ID, caller(r)); err != nil {
		s.writeError(w, r, err)
		return
	}

	members, err := s.deps.OrgMembers.List(ctx, org.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	org.Members = members

	orgTeams, err := s.deps.Teams.ListForOrganization(ctx, org.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if orgTeams == nil {
		orgTeams = []*teams.Team{}
	}

	httputil.WriteSuccess(w, OrganizationDetail{Organization: org, Teams: orgTeams})
}

// renameOrganization handles PATCH /organization
func (s *Server) renameOrganization(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.ID <= 0 {
		httputil.WriteBadRequest(w, "id required")
		return
	}
	ctx := r.Context()

	org, err := s.deps.Orgs.GetOrganization(ctx, req.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireManager(caller(r), org.CreatorID); err != nil {
		s.writeError(w, r, err)
		return
	}

	oldName, err := s.deps.Orgs.RenameOrganization(ctx, org.ID, req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	renamed, err := s.deps.Orgs.GetOrganization(ctx, org.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.propagateRename(ctx, invitations.TypeOrganization, oldName, renamed.Name)

	httputil.WriteSuccess(w, renamed)
}

// deleteOrganization handles DELETE /organization/{id}. Pending invitations
// to the organization and to its teams are withdrawn.
func (s *Server) deleteOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	org, err := s.deps.Orgs.GetOrganization(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireManager(caller(r), org.CreatorID); err != nil {
		s.writeError(w, r, err)
		return
	}

	orgTeams, err := s.deps.Teams.ListForOrganization(ctx, org.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.deps.Orgs.DeleteOrganization(ctx, org.ID); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.withdraw(ctx, invitations.TypeOrganization, org.Name)
	for _, team := range orgTeams {
		s.withdraw(ctx, invitations.TypeTeam, team.Name)
	}
	httputil.WriteNoContent(w)
}

// withdraw drops the invitations of a deleted group. The group is already
// gone, so failures are logged and not reported to the caller.
// propagateRename renames the pending invitations of a renamed group. The
// rename is already committed, so failures are only logged.
func (s *Server) propagateRename(ctx context.Context, t invitations.Type, oldName, newName string) {
	log := observability.FromContext(ctx).WithFields(map[string]interface{}{
		"type":     string(t),
		"old_name": oldName,
		"target":   newName,
	})
	n, err := s.deps.Invitations.PropagateRename(ctx, t, oldName, newName)
	if err != nil {
		log.WithError(err).Warn("failed to rename pending invitations")
		return
	}
	if n > 0 {
		log.WithField("renamed", n).Info("pending invitations renamed")
	}
}

func (s *Server) withdraw(ctx context.Context, t invitations.Type, name string) {
	log := observability.FromContext(ctx).WithFields(map[string]interface{}{
		"type":   string(t),
		"target": name,
	})
	n, err := s.deps.Invitations.Withdraw(ctx, t, name)
	if err != nil {
		log.WithError(err).Warn("failed to withdraw invitations")
		return
	}
	if n > 0 {
		log.WithField("withdrawn", n).Info("invitations withdrawn")
	}
}

// inviteToOrganization handles PUT /organization/{id}/agent
func (s *Server) inviteToOrganization(w http.ResponseWriter, r *http.Request) {
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

	org, err := s.deps.Orgs.GetOrganization(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireMember(ctx, s.deps.OrgMembers, org.ID, me); err != nil {
		s.writeError(w, r, err)
		return
	}

	invs, err := s.deps.Invitations.InviteToOrganization(ctx, org, me.Agent, req.recipients())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, invs)
}

// removeOrganizationMember handles DELETE /organization/{id}/agent/{agentId}.
// Members may remove themselves; the creator and root may remove anyone but
// the creator.
func (s *Server) removeOrganizationMember(w http.ResponseWriter, r *http.Request) {
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

	org, err := s.deps.Orgs.GetOrganization(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if agentID != me.Agent.ID {
		if err := requireManager(me, org.CreatorID); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	if err := s.deps.OrgMembers.Remove(ctx, org.ID, agentID, org.CreatorID); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
