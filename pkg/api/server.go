package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/identity/pkg/agents"
	"github.com/platinummonkey/identity/pkg/auth"
	"github.com/platinummonkey/identity/pkg/clientapps"
	"github.com/platinummonkey/identity/pkg/httputil"
	"github.com/platinummonkey/identity/pkg/invitations"
	"github.com/platinummonkey/identity/pkg/membership"
	"github.com/platinummonkey/identity/pkg/middleware"
	"github.com/platinummonkey/identity/pkg/observability"
	"github.com/platinummonkey/identity/pkg/orgs"
	"github.com/platinummonkey/identity/pkg/sessions"
	"github.com/platinummonkey/identity/pkg/teams"
)

// Authenticator guards the authenticated routes and turns bearer tokens into
// agents for /login
type Authenticator interface {
	Handler(next http.Handler) http.Handler
	AuthenticateBearer(ctx context.Context, raw string) (*auth.AuthContext, error)
}

// SessionManager issues and clears the session cookie
type SessionManager interface {
	Create(ctx context.Context, w http.ResponseWriter, agentID int64, data map[string]string) (*sessions.Session, error)
	Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// AgentDirectory is the agent storage used by the handlers
type AgentDirectory interface {
	Get(ctx context.Context, id int64) (*agents.Agent, error)
	List(ctx context.Context) ([]*agents.Agent, error)
	Update(ctx context.Context, id int64, name string, profile json.RawMessage) (*agents.Agent, error)
	Delete(ctx context.Context, id int64) error
}

// OrganizationService is the organization storage used by the handlers
type OrganizationService interface {
	CreateOrganization(ctx context.Context, name string, creatorID int64) (*orgs.Organization, error)
	GetOrganization(ctx context.Context, id int64) (*orgs.Organization, error)
	ListForAgent(ctx context.Context, agentID int64) ([]*orgs.AgentOrganization, error)
	ListOrganizations(ctx context.Context) ([]*orgs.Organization, error)
	RenameOrganization(ctx context.Context, id int64, name string) (string, error)
	DeleteOrganization(ctx context.Context, id int64) error
}

// TeamService is the team storage used by the handlers
type TeamService interface {
	CreateTeam(ctx context.Context, organizationID int64, name string, creatorID int64) (*teams.Team, error)
	GetTeam(ctx context.Context, id int64) (*teams.Team, error)
	ListForAgent(ctx context.Context, agentID int64) ([]*teams.AgentTeam, error)
	ListForOrganization(ctx context.Context, organizationID int64) ([]*teams.Team, error)
	ListTeams(ctx context.Context) ([]*teams.Team, error)
	RenameTeam(ctx context.Context, id int64, name string) (string, error)
	DeleteTeam(ctx context.Context, id int64) error
}

// MemberStore is the membership storage of one group kind
type MemberStore interface {
	List(ctx context.Context, groupID int64) ([]*membership.Member, error)
	Remove(ctx context.Context, groupID, agentID, creatorID int64) error
	IsVerifiedMember(ctx context.Context, groupID, agentID int64) (bool, error)
}

// InvitationService runs the invitation workflow
type InvitationService interface {
	InviteToOrganization(ctx context.Context, org *orgs.Organization, inviter *agents.Agent, emails []string) ([]*invitations.Invitation, error)
	InviteToTeam(ctx context.Context, team *teams.Team, inviter *agents.Agent, emails []string) ([]*invitations.Invitation, error)
	ListForAgent(ctx context.Context, agent *agents.Agent) ([]*invitations.Invitation, error)
	Accept(ctx context.Context, agent *agents.Agent, id uuid.UUID) (*invitations.Invitation, error)
	Reject(ctx context.Context, agent *agents.Agent, id uuid.UUID) error
	PropagateRename(ctx context.Context, t invitations.Type, oldName, newName string) (int, error)
	Withdraw(ctx context.Context, t invitations.Type, name string) (int64, error)
}

// ClientAppStore registers OAuth client applications
type ClientAppStore interface {
	Create(ctx context.Context, ownerID int64, name, description string, redirectURIs []string) (*clientapps.ClientApp, string, error)
	ListForAgent(ctx context.Context, agentID int64) ([]*clientapps.ClientApp, error)
	Delete(ctx context.Context, id int64, actor clientapps.Actor) error
}

// Dependencies wires the server to its collaborators. LoginLimiter and
// Metrics are optional.
type Dependencies struct {
	Auth         Authenticator
	Sessions     SessionManager
	Agents       AgentDirectory
	Orgs         OrganizationService
	OrgMembers   MemberStore
	Teams        TeamService
	TeamMembers  MemberStore
	Invitations  InvitationService
	Apps         ClientAppStore
	LoginLimiter *middleware.RateLimiter
	Metrics      *observability.Metrics
	Logger       *observability.Logger
	RootEmail    string
	MaxBodyBytes int64
}

// Server represents our API server
type Server struct {
	deps   Dependencies
	router *mux.Router
	errors httputil.ErrorMapper
}

// NewServer creates a new API server
func NewServer(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = observability.NopLogger()
	}
	s := &Server{
		deps:   deps,
		router: mux.NewRouter(),
		errors: errorMapper(),
	}
	s.setupRoutes()
	return s
}

// errorMapper maps domain errors to HTTP statuses
func errorMapper() httputil.ErrorMapper {
	return httputil.ErrorMapper{
		// 404
		{Err: agents.ErrAgentNotFound, Status: http.StatusNotFound},
		{Err: orgs.ErrOrganizationNotFound, Status: http.StatusNotFound},
		{Err: teams.ErrTeamNotFound, Status: http.StatusNotFound},
		{Err: membership.ErrMemberNotFound, Status: http.StatusNotFound},
		{Err: invitations.ErrInvitationNotFound, Status: http.StatusNotFound},
		{Err: clientapps.ErrAppNotFound, Status: http.StatusNotFound},
		// 400
		{Err: orgs.ErrNameRequired, Status: http.StatusBadRequest},
		{Err: teams.ErrNameRequired, Status: http.StatusBadRequest},
		{Err: clientapps.ErrNameRequired, Status: http.StatusBadRequest},
		{Err: clientapps.ErrInvalidRedirectURI, Status: http.StatusBadRequest},
		{Err: agents.ErrInvalidEmail, Status: http.StatusBadRequest},
		{Err: agents.ErrInvalidProfile, Status: http.StatusBadRequest},
		{Err: invitations.ErrInvalidInvitation, Status: http.StatusBadRequest},
		// 409
		{Err: orgs.ErrDuplicateName, Status: http.StatusConflict},
		{Err: teams.ErrDuplicateName, Status: http.StatusConflict},
		{Err: membership.ErrAlreadyMember, Status: http.StatusConflict},
		// 403
		{Err: membership.ErrCreatorMembership, Status: http.StatusForbidden},
		{Err: teams.ErrNotOrganizationMember, Status: http.StatusForbidden},
		{Err: clientapps.ErrForbidden, Status: http.StatusForbidden},
		{Err: ErrForbidden, Status: http.StatusForbidden},
		{Err: ErrNotMember, Status: http.StatusForbidden},
		// 401
		{Err: auth.ErrInvalidToken, Status: http.StatusUnauthorized},
		{Err: auth.ErrMissingEmail, Status: http.StatusUnauthorized},
	}
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	if s.deps.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.deps.Metrics))
	}

	// Session routes
	var login http.Handler = http.HandlerFunc(s.login)
	if s.deps.LoginLimiter != nil {
		login = s.deps.LoginLimiter.Handler(login)
	}
	s.router.Handle("/login", login).Methods("POST")
	s.router.HandleFunc("/logout", s.logout).Methods("POST")

	api := s.router.NewRoute().Subrouter()
	api.Use(s.deps.Auth.Handler)

	// Agent routes
	api.HandleFunc("/agent", s.getCurrentAgent).Methods("GET")
	api.HandleFunc("/agent", s.updateCurrentAgent).Methods("PATCH")
	api.Handle("/agent/admin", middleware.RequireRoot(http.HandlerFunc(s.listAgents))).Methods("GET")
	api.HandleFunc("/agent/{id:[0-9]+}", s.getAgent).Methods("GET")
	api.Handle("/agent/{id:[0-9]+}", middleware.RequireRoot(http.HandlerFunc(s.deleteAgent))).Methods("DELETE")

	// Organization routes
	api.HandleFunc("/organization", s.listOrganizations).Methods("GET")
	api.HandleFunc("/organization", s.createOrganization).Methods("POST")
	api.HandleFunc("/organization", s.renameOrganization).Methods("PATCH")
	api.Handle("/organization/admin", middleware.RequireRoot(http.HandlerFunc(s.listAllOrganizations))).Methods("GET")
	api.HandleFunc("/organization/{id:[0-9]+}", s.getOrganization).Methods("GET")
	api.HandleFunc("/organization/{id:[0-9]+}", s.deleteOrganization).Methods("DELETE")
	api.HandleFunc("/organization/{id:[0-9]+}/agent", s.inviteToOrganization).Methods("PUT")
	api.HandleFunc("/organization/{id:[0-9]+}/agent/{agentId:[0-9]+}", s.removeOrganizationMember).Methods("DELETE")

	// Team routes
	api.HandleFunc("/team", s.listTeams).Methods("GET")
	api.HandleFunc("/team", s.createTeam).Methods("POST")
	api.HandleFunc("/team", s.renameTeam).Methods("PATCH")
	api.Handle("/team/admin", middleware.RequireRoot(http.HandlerFunc(s.listAllTeams))).Methods("GET")
	api.HandleFunc("/team/{id:[0-9]+}", s.getTeam).Methods("GET")
	api.HandleFunc("/team/{id:[0-9]+}", s.deleteTeam).Methods("DELETE")
	api.HandleFunc("/team/{id:[0-9]+}/agent", s.inviteToTeam).Methods("PUT")
	api.HandleFunc("/team/{id:[0-9]+}/agent/{agentId:[0-9]+}", s.removeTeamMember).Methods("DELETE")

	// Invitation routes
	api.HandleFunc("/invitations", s.listInvitations).Methods("GET")
	api.HandleFunc("/invitations/{uuid}/accept", s.acceptInvitation).Methods("POST")
	api.HandleFunc("/invitations/{uuid}", s.rejectInvitation).Methods("DELETE")

	// Client app routes
	api.HandleFunc("/app", s.listApps).Methods("GET")
	api.HandleFunc("/app", s.createApp).Methods("POST")
	api.HandleFunc("/app/{id:[0-9]+}", s.deleteApp).Methods("DELETE")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the router wrapped in the request-scoped middleware:
// request IDs, access logs, panic recovery, tracing and body limits
func (s *Server) Handler() http.Handler {
	chain := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.deps.Logger),
		httputil.RecoveryMiddleware(s.deps.Logger),
		func(next http.Handler) http.Handler { return otelhttp.NewHandler(next, "identity") },
		httputil.ContentTypeMiddleware,
	}
	if s.deps.MaxBodyBytes > 0 {
		chain = append(chain, httputil.MaxBytesMiddleware(s.deps.MaxBodyBytes))
	}
	return httputil.Chain(chain...)(s.router)
}

// Router returns the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.errors.Write(w, r, err)
}

// caller returns the authenticated agent. The auth middleware guarantees one
// on every route that calls it.
func caller(r *http.Request) *auth.AuthContext {
	return middleware.GetAuthContext(r)
}
