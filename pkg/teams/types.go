// Package teams manages teams. A team belongs to exactly one organization and
// has its own membership, kept by package membership.
package teams

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/platinummonkey/identity/pkg/membership"
)

var (
	// ErrTeamNotFound is returned when no team matches
	ErrTeamNotFound = errors.New("team not found")
	// ErrNameRequired is returned for a blank team name
	ErrNameRequired = errors.New("name required")
	// ErrDuplicateName is returned when the name is taken
	ErrDuplicateName = errors.New("That team is already registered")
	// ErrNotOrganizationMember is returned when the creator has no confirmed
	// membership in the owning organization
	ErrNotOrganizationMember = errors.New("only verified organization members can create teams")
)

// Team is a group of agents inside an organization
type Team struct {
	ID             int64                `json:"id"`
	Name           string               `json:"name"`
	OrganizationID int64                `json:"organization_id"`
	CreatorID      int64                `json:"creator_id"`
	Members        []*membership.Member `json:"members,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// AgentTeam is a team seen from one agent's membership
type AgentTeam struct {
	Team
	Verified bool `json:"verified"`
}

// Service defines team operations
type Service interface {
	CreateTeam(ctx context.Context, organizationID int64, name string, creatorID int64) (*Team, error)
	GetTeam(ctx context.Context, id int64) (*Team, error)
	GetTeamByName(ctx context.Context, name string) (*Team, error)
	ListForAgent(ctx context.Context, agentID int64) ([]*AgentTeam, error)
	ListForOrganization(ctx context.Context, organizationID int64) ([]*Team, error)
	ListTeams(ctx context.Context) ([]*Team, error)
	RenameTeam(ctx context.Context, id int64, name string) (string, error)
	DeleteTeam(ctx context.Context, id int64) error
	Members() *membership.Store
}

// ValidateName trims name and rejects blanks
func ValidateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrNameRequired
	}
	return trimmed, nil
}
