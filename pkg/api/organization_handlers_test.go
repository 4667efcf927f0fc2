package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/identity/pkg/invitations"
	"github.com/platinummonkey/identity/pkg/orgs"
)

func createOrg(t *testing.T, env *testEnv, as, name string) *orgs.Organization {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/organization", as, CreateGroupRequest{Name: name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var org orgs.Organization
	decode(t, rec, &org)
	return &org
}

func TestCreateOrganization(t *testing.T) {
	env := newTestEnv(t)

	org := createOrg(t, env, aliceEmail, "Acme")
	assert.Equal(t, "Acme", org.Name)
	assert.Equal(t, int64(1), org.CreatorID)

	// creator is a verified member
	ok, _ := env.orgMembers.IsVerifiedMember(context.Background(), org.ID, 1)
	assert.True(t, ok)

	rec := env.do(t, http.MethodPost, "/organization", bobEmail, CreateGroupRequest{Name: "Acme"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "That organization is already registered", errorMessage(t, rec))

	rec = env.do(t, http.MethodPost, "/organization", bobEmail, CreateGroupRequest{Name: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name required", errorMessage(t, rec))

	rec = env.do(t, http.MethodPost, "/organization", bobEmail, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOrganizations(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/organization", aliceEmail, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	org := createOrg(t, env, aliceEmail, "Acme")
	code := uuid.New()
	env.orgMembers.add(org.ID, 2, &code)

	rec = env.do(t, http.MethodGet, "/organization", bobEmail, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []orgs.AgentOrganization
	decode(t, rec, &list)
	require.Len(t, list, 1)
	assert.False(t, list[0].Verified)

	rec = env.do(t, http.MethodGet, "/organization/admin", aliceEmail, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/organization/admin", rootEmail, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []orgs.Organization
	decode(t, rec, &all)
	assert.Len(t, all, 1)
}

func TestGetOrganization(t *testing.T) {
	env := newTestEnv(t)
	org := createOrg(t, env, aliceEmail, "Acme")
	rec := env.do(t, http.MethodPost, "/team", aliceEmail, CreateGroupRequest{Name: "Core", OrganizationID: org.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/organization/1", aliceEmail, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var detail struct {
		ID      int64 `json:"id"`
		Members []struct {
			AgentID          int64      `json:"agent_id"`
			VerificationCode *uuid.UUID `json:"verification_code"`
		} `json:"members"`
		Teams []struct {
			Name string `json:"name"`
		} `json:"teams"`
	}
	decode(t, rec, &detail)
	assert.Equal(t, org.ID, detail.ID)
	require.Len(t, detail.Members, 1)
	assert.Equal(t, int64(1), detail.Members[0].AgentID)
	assert.Nil(t, detail.Members[0].VerificationCode)
	require.Len(t, detail.Teams, 1)
	assert.Equal(t, "Core", detail.Teams[0].Name)

	// pending members cannot look inside
	code := uuid.New()
	env.orgMembers.add(org.ID, 2, &code)
	rec = env.do(t, http.MethodGet, "/organization/1", bobEmail, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "not a member", errorMessage(t, rec))

	rec = env.do(t, http.MethodGet, "/organization/1", rootEmail, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/organization/99", aliceEmail, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "organization not found", errorMessage(t, rec))
}

func TestRenameOrganization(t *testing.T) {
	env := newTestEnv(t)
	org := createOrg(t, env, aliceEmail, "Acme")
	createOrg(t, env, bobEmail, "Globex")

	rec := env.do(t, http.MethodPatch, "/organization", bobEmail, RenameRequest{ID: org.ID, Name: "Bobco"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPatch, "/organization", aliceEmail, RenameRequest{ID: org.ID, Name: "Globex"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPatch, "/organization", aliceEmail, RenameRequest{Name: "Acme Corp"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPatch, "/organization", aliceEmail, RenameRequest{ID: org.ID, Name: "Acme Corp"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var renamed orgs.Organization
	decode(t, rec, &renamed)
	assert.Equal(t, "Acme Corp", renamed.Name)
	assert.Equal(t, []renameCall{{Type: invitations.TypeOrganization, OldName: "Acme", NewName: "Acme Corp"}}, env.invitations.renames)

	// root may rename anything
	rec = env.do(t, http.MethodPatch, "/organization", rootEmail, RenameRequest{ID: org.ID, Name: "Acme"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRenameOrganizationPropagateFailure(t *testing.T) {
	env := newTestEnv(t)
	org := createOrg(t, env, aliceEmail, "Acme")
	env.invitations.err = errBoom

	rec := env.do(t, http.MethodPatch, "/organization", aliceEmail, RenameRequest{ID: org.ID, Name: "Acme Corp"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var renamed orgs.Organization
	decode(t, rec, &renamed)
	assert.Equal(t, "Acme Corp", renamed.Name)
	assert.Len(t, env.invitations.renames, 1)
}

func TestDeleteOrganization(t *testing.T) {
	env := newTestEnv(t)
	org := createOrg(t, env, aliceEmail, "Acme")
	rec := env.do(t, http.MethodPost, "/team", aliceEmail, CreateGroupRequest{Name: "Core", OrganizationID: org.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodDelete, "/organization/1", bobEmail, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, "/organization/1", aliceEmail, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, env.orgs.byID)
	assert.Equal(t, []withdrawCall{
		{Type: invitations.TypeOrganization, Name: "Acme"},
		{Type: invitations.TypeTeam, Name: "Core"},
	}, env.invitations.withdrawn)

	rec = env.do(t, http.MethodDelete, "/organization/1", aliceEmail, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteOrganizationWithdrawFailure(t *testing.T) {
	env := newTestEnv(t)
	createOrg(t, env, aliceEmail, "Acme")
	env.invitations.err = errBoom

	rec := env.do(t, http.MethodDelete, "/organization/1", aliceEmail, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestInviteToOrganization(t *testing.T) {
	env := newTestEnv(t)
	org := createOrg(t, env, aliceEmail, "Acme")

	t.Run("single email", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/organization/1/agent", aliceEmail, InviteRequest{Email: "Bob@Example.com"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var invs []invitations.Invitation
		decode(t, rec, &invs)
		require.Len(t, invs, 1)
		assert.Equal(t, bobEmail, invs[0].Recipient)
		assert.Equal(t, "Acme", invs[0].Name)
		assert.Equal(t, invitations.OrganizationChange{OrganizationID: org.ID}, invs[0].Payload)
	})

	t.Run("email list", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/organization/1/agent", aliceEmail, InviteRequest{
			Emails: []string{"carol@example.com", "dave@example.com"},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		var invs []invitations.Invitation
		decode(t, rec, &invs)
		assert.Len(t, invs, 2)
	})

	t.Run("no recipients", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/organization/1/agent", aliceEmail, InviteRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "a valid email is required", errorMessage(t, rec))
	})

	t.Run("non members cannot invite", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/organization/1/agent", bobEmail, InviteRequest{Email: "eve@example.com"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown organization", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/organization/7/agent", aliceEmail, InviteRequest{Email: "eve@example.com"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRemoveOrganizationMember(t *testing.T) {
	env := newTestEnv(t)
	org := createOrg(t, env, aliceEmail, "Acme")
	env.orgMembers.add(org.ID, 2, nil)
	env.orgMembers.add(org.ID, 3, nil)

	rec := env.do(t, http.MethodDelete, "/organization/1/agent/1", aliceEmail, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "the creator cannot be removed", errorMessage(t, rec))

	rec = env.do(t, http.MethodDelete, "/organization/1/agent/3", bobEmail, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// members may leave
	rec = env.do(t, http.MethodDelete, "/organization/1/agent/2", bobEmail, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/organization/1/agent/3", aliceEmail, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/organization/1/agent/3", aliceEmail, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "member not found", errorMessage(t, rec))
}
