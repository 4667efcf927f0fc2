package orgs

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/platinummonkey/identity/pkg/membership"
)

var (
	// ErrOrganizationNotFound is returned when no organization matches
	ErrOrganizationNotFound = errors.New("organization not found")
	// ErrNameRequired is returned for a blank organization name
	ErrNameRequired = errors.New("name required")
	// ErrDuplicateName is returned when the name is taken
	ErrDuplicateName = errors.New("That organization is already registered")
)

// Organization groups agents and teams
type Organization struct {
	ID        int64                `json:"id"`
	Name      string               `json:"name"`
	CreatorID int64                `json:"creator_id"`
	Members   []*membership.Member `json:"members,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// AgentOrganization is an organization seen from one agent's membership
type AgentOrganization struct {
	Organization
	Verified bool `json:"verified"`
}

// Service defines organization operations
type Service interface {
	CreateOrganization(ctx context.Context, name string, creatorID int64) (*Organization, error)
	GetOrganization(ctx context.Context, id int64) (*Organization, error)
	GetOrganizationByName(ctx context.Context, name string) (*Organization, error)
	ListForAgent(ctx context.Context, agentID int64) ([]*AgentOrganization, error)
	ListOrganizations(ctx context.Context) ([]*Organization, error)
	RenameOrganization(ctx context.Context, id int64, name string) (string, error)
	DeleteOrganization(ctx context.Context, id int64) error
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
