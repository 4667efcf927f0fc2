package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/identity/pkg/agents"
	"github.com/platinummonkey/identity/pkg/auth"
	"github.com/platinummonkey/identity/pkg/clientapps"
	"github.com/platinummonkey/identity/pkg/contextkeys"
	"github.com/platinummonkey/identity/pkg/httputil"
	"github.com/platinummonkey/identity/pkg/invitations"
	"github.com/platinummonkey/identity/pkg/membership"
	"github.com/platinummonkey/identity/pkg/orgs"
	"github.com/platinummonkey/identity/pkg/sessions"
	"github.com/platinummonkey/identity/pkg/teams"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeAuth accepts "Bearer <email>" for every agent it knows
type fakeAuth struct {
	agents *fakeAgents
	root   string
}

func (f *fakeAuth) AuthenticateBearer(_ context.Context, raw string) (*auth.AuthContext, error) {
	for _, a := range f.agents.byID {
		if a.Email == raw {
			agent := *a
			agent.WithRoot(f.root)
			return &auth.AuthContext{Agent: &agent, Subject: "sub|" + a.Email, IsSuper: agent.IsSuper}, nil
		}
	}
	return nil, auth.ErrInvalidToken
}

func (f *fakeAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := httputil.BearerToken(r)
		if !ok {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		authCtx, err := f.AuthenticateBearer(r.Context(), raw)
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(contextkeys.WithAuth(r.Context(), authCtx)))
	})
}

type fakeSessions struct {
	created   []int64
	destroyed int
	err       error
}

func (f *fakeSessions) Create(_ context.Context, w http.ResponseWriter, agentID int64, data map[string]string) (*sessions.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, agentID)
	http.SetCookie(w, &http.Cookie{Name: sessions.DefaultCookieName, Value: "sid-1", Path: "/", HttpOnly: true})
	return &sessions.Session{ID: "sid-1", AgentID: agentID, Data: data, Expires: fixedNow.Add(time.Hour)}, nil
}

func (f *fakeSessions) Destroy(_ context.Context, w http.ResponseWriter, _ *http.Request) error {
	f.destroyed++
	http.SetCookie(w, &http.Cookie{Name: sessions.DefaultCookieName, Value: "", Path: "/", MaxAge: -1})
	return nil
}

type fakeAgents struct {
	byID map[int64]*agents.Agent
}

func newFakeAgents(list ...*agents.Agent) *fakeAgents {
	f := &fakeAgents{byID: map[int64]*agents.Agent{}}
	for _, a := range list {
		f.byID[a.ID] = a
	}
	return f
}

func (f *fakeAgents) Get(_ context.Context, id int64) (*agents.Agent, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, agents.ErrAgentNotFound
	}
	c := *a
	return &c, nil
}

func (f *fakeAgents) List(_ context.Context) ([]*agents.Agent, error) {
	out := make([]*agents.Agent, 0, len(f.byID))
	for _, a := range f.byID {
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (f *fakeAgents) Update(_ context.Context, id int64, name string, profile json.RawMessage) (*agents.Agent, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, agents.ErrAgentNotFound
	}
	if profile != nil {
		var obj map[string]interface{}
		if err := json.Unmarshal(profile, &obj); err != nil {
			return nil, agents.ErrInvalidProfile
		}
		a.SocialProfile = profile
	}
	a.Name = name
	c := *a
	return &c, nil
}

func (f *fakeAgents) Delete(_ context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return agents.ErrAgentNotFound
	}
	delete(f.byID, id)
	return nil
}

// fakeMembers keeps rows per group; a nil code is a verified membership
type fakeMembers struct {
	rows map[int64]map[int64]*uuid.UUID
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{rows: map[int64]map[int64]*uuid.UUID{}}
}

func (f *fakeMembers) add(groupID, agentID int64, code *uuid.UUID) {
	if f.rows[groupID] == nil {
		f.rows[groupID] = map[int64]*uuid.UUID{}
	}
	f.rows[groupID][agentID] = code
}

func (f *fakeMembers) List(_ context.Context, groupID int64) ([]*membership.Member, error) {
	out := []*membership.Member{}
	for agentID, code := range f.rows[groupID] {
		out = append(out, &membership.Member{AgentID: agentID, GroupID: groupID, VerificationCode: code})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out, nil
}

func (f *fakeMembers) Remove(_ context.Context, groupID, agentID, creatorID int64) error {
	if agentID == creatorID {
		return membership.ErrCreatorMembership
	}
	if _, ok := f.rows[groupID][agentID]; !ok {
		return membership.ErrMemberNotFound
	}
	delete(f.rows[groupID], agentID)
	return nil
}

func (f *fakeMembers) IsVerifiedMember(_ context.Context, groupID, agentID int64) (bool, error) {
	code, ok := f.rows[groupID][agentID]
	return ok && code == nil, nil
}

type fakeOrgs struct {
	byID    map[int64]*orgs.Organization
	members *fakeMembers
	nextID  int64
}

func (f *fakeOrgs) CreateOrganization(_ context.Context, name string, creatorID int64) (*orgs.Organization, error) {
	name, err := orgs.ValidateName(name)
	if err != nil {
		return nil, err
	}
	for _, o := range f.byID {
		if o.Name == name {
			return nil, orgs.ErrDuplicateName
		}
	}
	f.nextID++
	org := &orgs.Organization{ID: f.nextID, Name: name, CreatorID: creatorID, CreatedAt: fixedNow, UpdatedAt: fixedNow}
	f.byID[org.ID] = org
	f.members.add(org.ID, creatorID, nil)
	c := *org
	return &c, nil
}

func (f *fakeOrgs) GetOrganization(_ context.Context, id int64) (*orgs.Organization, error) {
	o, ok := f.byID[id]
	if !ok {
		return nil, orgs.ErrOrganizationNotFound
	}
	c := *o
	return &c, nil
}

func (f *fakeOrgs) ListForAgent(_ context.Context, agentID int64) ([]*orgs.AgentOrganization, error) {
	var out []*orgs.AgentOrganization
	for _, o := range f.byID {
		if code, ok := f.members.rows[o.ID][agentID]; ok {
			out = append(out, &orgs.AgentOrganization{Organization: *o, Verified: code == nil})
		}
	}
	return out, nil
}

func (f *fakeOrgs) ListOrganizations(_ context.Context) ([]*orgs.Organization, error) {
	var out []*orgs.Organization
	for _, o := range f.byID {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeOrgs) RenameOrganization(_ context.Context, id int64, name string) (string, error) {
	name, err := orgs.ValidateName(name)
	if err != nil {
		return "", err
	}
	o, ok := f.byID[id]
	if !ok {
		return "", orgs.ErrOrganizationNotFound
	}
	for _, other := range f.byID {
		if other.ID != id && other.Name == name {
			return "", orgs.ErrDuplicateName
		}
	}
	old := o.Name
	o.Name = name
	return old, nil
}

func (f *fakeOrgs) DeleteOrganization(_ context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return orgs.ErrOrganizationNotFound
	}
	delete(f.byID, id)
	delete(f.members.rows, id)
	return nil
}

type fakeTeams struct {
	byID       map[int64]*teams.Team
	members    *fakeMembers
	orgMembers *fakeMembers
	nextID     int64
}

func (f *fakeTeams) CreateTeam(_ context.Context, organizationID int64, name string, creatorID int64) (*teams.Team, error) {
	name, err := teams.ValidateName(name)
	if err != nil {
		return nil, err
	}
	if ok, _ := f.orgMembers.IsVerifiedMember(context.Background(), organizationID, creatorID); !ok {
		return nil, teams.ErrNotOrganizationMember
	}
	for _, t := range f.byID {
		if t.Name == name {
			return nil, teams.ErrDuplicateName
		}
	}
	f.nextID++
	team := &teams.Team{ID: f.nextID, Name: name, OrganizationID: organizationID, CreatorID: creatorID, CreatedAt: fixedNow, UpdatedAt: fixedNow}
	f.byID[team.ID] = team
	f.members.add(team.ID, creatorID, nil)
	c := *team
	return &c, nil
}

func (f *fakeTeams) GetTeam(_ context.Context, id int64) (*teams.Team, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, teams.ErrTeamNotFound
	}
	c := *t
	return &c, nil
}

func (f *fakeTeams) ListForAgent(_ context.Context, agentID int64) ([]*teams.AgentTeam, error) {
	var out []*teams.AgentTeam
	for _, t := range f.byID {
		if code, ok := f.members.rows[t.ID][agentID]; ok {
			out = append(out, &teams.AgentTeam{Team: *t, Verified: code == nil})
		}
	}
	return out, nil
}

func (f *fakeTeams) ListForOrganization(_ context.Context, organizationID int64) ([]*teams.Team, error) {
	var out []*teams.Team
	for _, t := range f.byID {
		if t.OrganizationID == organizationID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTeams) ListTeams(_ context.Context) ([]*teams.Team, error) {
	var out []*teams.Team
	for _, t := range f.byID {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTeams) RenameTeam(_ context.Context, id int64, name string) (string, error) {
	name, err := teams.ValidateName(name)
	if err != nil {
		return "", err
	}
	t, ok := f.byID[id]
	if !ok {
		return "", teams.ErrTeamNotFound
	}
	old := t.Name
	t.Name = name
	return old, nil
}

func (f *fakeTeams) DeleteTeam(_ context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return teams.ErrTeamNotFound
	}
	delete(f.byID, id)
	return nil
}

type renameCall struct {
	Type    invitations.Type
	OldName string
	NewName string
}

type withdrawCall struct {
	Type invitations.Type
	Name string
}

type fakeInvitations struct {
	invited   []string
	pending   map[uuid.UUID]*invitations.Invitation
	accepted  []uuid.UUID
	rejected  []uuid.UUID
	renames   []renameCall
	withdrawn []withdrawCall
	err       error
}

func newFakeInvitations() *fakeInvitations {
	return &fakeInvitations{pending: map[uuid.UUID]*invitations.Invitation{}}
}

func (f *fakeInvitations) invite(name string, payload invitations.Payload, emails []string) ([]*invitations.Invitation, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(emails) == 0 {
		return nil, agents.ErrInvalidEmail
	}
	out := make([]*invitations.Invitation, 0, len(emails))
	for _, e := range emails {
		email := agents.NormalizeEmail(e)
		f.invited = append(f.invited, email)
		inv := &invitations.Invitation{Recipient: email, UUID: uuid.New(), Name: name, Payload: payload}
		f.pending[inv.UUID] = inv
		out = append(out, inv)
	}
	return out, nil
}

func (f *fakeInvitations) InviteToOrganization(_ context.Context, org *orgs.Organization, _ *agents.Agent, emails []string) ([]*invitations.Invitation, error) {
	return f.invite(org.Name, invitations.OrganizationChange{OrganizationID: org.ID}, emails)
}

func (f *fakeInvitations) InviteToTeam(_ context.Context, team *teams.Team, _ *agents.Agent, emails []string) ([]*invitations.Invitation, error) {
	return f.invite(team.Name, invitations.TeamChange{TeamID: team.ID, OrganizationID: team.OrganizationID}, emails)
}

func (f *fakeInvitations) ListForAgent(_ context.Context, agent *agents.Agent) ([]*invitations.Invitation, error) {
	var out []*invitations.Invitation
	for _, inv := range f.pending {
		if strings.EqualFold(inv.Recipient, agent.Email) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeInvitations) Accept(_ context.Context, agent *agents.Agent, id uuid.UUID) (*invitations.Invitation, error) {
	inv, ok := f.pending[id]
	if !ok || inv.Recipient != agent.Email {
		return nil, invitations.ErrInvitationNotFound
	}
	delete(f.pending, id)
	f.accepted = append(f.accepted, id)
	return inv, nil
}

func (f *fakeInvitations) Reject(_ context.Context, agent *agents.Agent, id uuid.UUID) error {
	inv, ok := f.pending[id]
	if !ok || inv.Recipient != agent.Email {
		return invitations.ErrInvitationNotFound
	}
	delete(f.pending, id)
	f.rejected = append(f.rejected, id)
	return nil
}

func (f *fakeInvitations) PropagateRename(_ context.Context, t invitations.Type, oldName, newName string) (int, error) {
	f.renames = append(f.renames, renameCall{Type: t, OldName: oldName, NewName: newName})
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

func (f *fakeInvitations) Withdraw(_ context.Context, t invitations.Type, name string) (int64, error) {
	f.withdrawn = append(f.withdrawn, withdrawCall{Type: t, Name: name})
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

type fakeApps struct {
	byID   map[int64]*clientapps.ClientApp
	nextID int64
}

func (f *fakeApps) Create(_ context.Context, ownerID int64, name, description string, redirectURIs []string) (*clientapps.ClientApp, string, error) {
	if strings.TrimSpace(name) == "" {
		return nil, "", clientapps.ErrNameRequired
	}
	f.nextID++
	app := &clientapps.ClientApp{
		ID:           f.nextID,
		AgentID:      ownerID,
		Name:         name,
		Description:  description,
		ClientID:     uuid.New(),
		SecretHash:   "hash",
		RedirectURIs: redirectURIs,
		CreatedAt:    fixedNow,
		UpdatedAt:    fixedNow,
	}
	f.byID[app.ID] = app
	return app, "s3cret", nil
}

func (f *fakeApps) ListForAgent(_ context.Context, agentID int64) ([]*clientapps.ClientApp, error) {
	out := []*clientapps.ClientApp{}
	for _, app := range f.byID {
		if app.AgentID == agentID {
			out = append(out, app)
		}
	}
	return out, nil
}

func (f *fakeApps) Delete(_ context.Context, id int64, actor clientapps.Actor) error {
	app, ok := f.byID[id]
	if !ok {
		return clientapps.ErrAppNotFound
	}
	if actor == nil || !actor.CanManage(app.AgentID) {
		return clientapps.ErrForbidden
	}
	delete(f.byID, id)
	return nil
}

var errBoom = errors.New("connection reset by peer")
