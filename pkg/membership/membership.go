// Package membership stores the join rows between agents and the groups
// (organizations and teams) they belong to.
//
// A row with a NULL verification code is a confirmed membership. A row with a
// code is a pending invitation; Verify clears the code and nothing else. The
// transition is one way.
package membership

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrMemberNotFound is returned when no membership row matches
	ErrMemberNotFound = errors.New("member not found")
	// ErrAlreadyMember is returned when inviting an agent that already has a row
	ErrAlreadyMember = errors.New("agent is already a member")
	// ErrCreatorMembership is returned when removing the creator's own row
	ErrCreatorMembership = errors.New("the creator cannot be removed")
)

// Table names a member table and the column referencing its group
type Table struct {
	Name        string
	GroupColumn string
}

var (
	// OrganizationMembers joins agents to organizations
	OrganizationMembers = Table{Name: "organization_members", GroupColumn: "organization_id"}
	// TeamMembers joins agents to teams
	TeamMembers = Table{Name: "team_members", GroupColumn: "team_id"}
)

// Member is a single membership row. Name and Email are only filled by List.
type Member struct {
	AgentID          int64      `json:"agent_id"`
	GroupID          int64      `json:"-"`
	VerificationCode *uuid.UUID `json:"verification_code"`
	Name             string     `json:"name,omitempty"`
	Email            string     `json:"email,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Verified reports whether the membership has been accepted
func (m *Member) Verified() bool {
	return m.VerificationCode == nil
}
