package api

import (
	"net/http"

	"github.com/platinummonkey/identity/pkg/httputil"
	"github.com/platinummonkey/identity/pkg/invitations"
)

// listInvitations handles GET /invitations
func (s *Server) listInvitations(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Invitations.ListForAgent(r.Context(), caller(r).Agent)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*invitations.Invitation{}
	}
	httputil.WriteSuccess(w, list)
}

// acceptInvitation handles POST /invitations/{uuid}/accept
func (s *Server) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathUUIDOrError(w, r, "uuid")
	if !ok {
		return
	}

	inv, err := s.deps.Invitations.Accept(r.Context(), caller(r).Agent, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, inv)
}

// rejectInvitation handles DELETE /invitations/{uuid}
func (s *Server) rejectInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathUUIDOrError(w, r, "uuid")
	if !ok {
		return
	}

	if err := s.deps.Invitations.Reject(r.Context(), caller(r).Agent, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
