package invitations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/identity/pkg/agents"
	"github.com/platinummonkey/identity/pkg/membership"
	"github.com/platinummonkey/identity/pkg/observability"
	"github.com/platinummonkey/identity/pkg/orgs"
	"github.com/platinummonkey/identity/pkg/teams"
)

// AgentResolver finds or creates the agent owning an e-mail address
type AgentResolver interface {
	FindOrCreate(ctx context.Context, email, name string) (*agents.Agent, bool, error)
}

// MemberStore is the part of membership.Store invitations drive
type MemberStore interface {
	Invite(ctx context.Context, groupID, agentID int64) (uuid.UUID, error)
	Find(ctx context.Context, groupID, agentID int64) (*membership.Member, error)
	FindByCode(ctx context.Context, groupID int64, code uuid.UUID) (*membership.Member, error)
	Verify(ctx context.Context, member *membership.Member) error
	RemovePending(ctx context.Context, groupID int64, code uuid.UUID) error
}

// VerifyRecorder observes accepted memberships
type VerifyRecorder interface {
	MembershipVerified(kind string)
}

// Service runs the invitation workflow: pending membership rows plus the
// invitation records announcing them
type Service struct {
	store       *Store
	agents      AgentResolver
	orgMembers  MemberStore
	teamMembers MemberStore
	recorder    VerifyRecorder
	logger      *observability.Logger
}

// NewService creates an invitation service
func NewService(store *Store, resolver AgentResolver, orgMembers, teamMembers MemberStore, logger *observability.Logger) *Service {
	return &Service{
		store:       store,
		agents:      resolver,
		orgMembers:  orgMembers,
		teamMembers: teamMembers,
		logger:      logger,
	}
}

// WithRecorder sets the recorder notified of accepted memberships
func (s *Service) WithRecorder(r VerifyRecorder) *Service {
	s.recorder = r
	return s
}

// Store returns the invitation store
func (s *Service) Store() *Store {
	return s.store
}

// InviteToOrganization invites each e-mail to org
func (s *Service) InviteToOrganization(ctx context.Context, org *orgs.Organization, inviter *agents.Agent, emails []string) ([]*Invitation, error) {
	return s.invite(ctx, s.orgMembers, org.ID, org.Name, OrganizationChange{OrganizationID: org.ID}, inviter, emails)
}

// InviteToTeam invites each e-mail to team
func (s *Service) InviteToTeam(ctx context.Context, team *teams.Team, inviter *agents.Agent, emails []string) ([]*Invitation, error) {
	return s.invite(ctx, s.teamMembers, team.ID, team.Name, TeamChange{TeamID: team.ID, OrganizationID: team.OrganizationID}, inviter, emails)
}

func (s *Service) invite(ctx context.Context, members MemberStore, groupID int64, name string, payload Payload, inviter *agents.Agent, emails []string) ([]*Invitation, error) {
	recipients, err := normalizeRecipients(emails)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(map[string]interface{}{
		"type":     string(payload.Type()),
		"target":   name,
		"inviter":  inviter.Email,
		"requests": len(recipients),
	})

	invs := make([]*Invitation, 0, len(recipients))
	for _, email := range recipients {
		agent, _, err := s.agents.FindOrCreate(ctx, email, "")
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", email, err)
		}

		code, err := members.Invite(ctx, groupID, agent.ID)
		if errors.Is(err, membership.ErrAlreadyMember) {
			existing, ferr := members.Find(ctx, groupID, agent.ID)
			if ferr != nil {
				return nil, ferr
			}
			if existing.Verified() {
				log.WithField("recipient", email).Debug("skipping existing member")
				continue
			}
			// still pending: announce the same code again
			code, err = *existing.VerificationCode, nil
		}
		if err != nil {
			return nil, err
		}

		invs = append(invs, &Invitation{
			Recipient: agent.Email,
			UUID:      code,
			Name:      name,
			Payload:   payload,
		})
	}

	if err := s.store.UpsertInvites(ctx, invs); err != nil {
		return nil, err
	}

	log.WithField("invited", len(invs)).Info("invitations sent")
	return invs, nil
}

// ListForAgent lists the pending invitations addressed to agent
func (s *Service) ListForAgent(ctx context.Context, agent *agents.Agent) ([]*Invitation, error) {
	return s.store.ListForRecipient(ctx, agent.Email)
}

// Accept verifies the membership announced by invitation id and deletes the
// invitation
func (s *Service) Accept(ctx context.Context, agent *agents.Agent, id uuid.UUID) (*Invitation, error) {
	inv, err := s.store.Get(ctx, agent.Email, id)
	if err != nil {
		return nil, err
	}

	members, groupID, err := s.target(inv.Payload)
	if err != nil {
		return nil, err
	}
	member, err := members.FindByCode(ctx, groupID, inv.UUID)
	if errors.Is(err, membership.ErrMemberNotFound) {
		// the group or the pending row is gone; the invitation is stale
		if derr := s.store.Delete(ctx, inv.Recipient, inv.UUID); derr != nil && !errors.Is(derr, ErrInvitationNotFound) {
			return nil, derr
		}
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}
	if member.AgentID != agent.ID {
		return nil, ErrInvitationNotFound
	}

	if err := members.Verify(ctx, member); err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, inv.Recipient, inv.UUID); err != nil && !errors.Is(err, ErrInvitationNotFound) {
		return nil, err
	}

	if s.recorder != nil {
		s.recorder.MembershipVerified(string(inv.Type()))
	}
	s.logger.WithFields(map[string]interface{}{
		"type":     string(inv.Type()),
		"target":   inv.Name,
		"agent_id": agent.ID,
	}).Info("invitation accepted")
	return inv, nil
}

// Reject drops the pending membership announced by invitation id and the
// invitation itself
func (s *Service) Reject(ctx context.Context, agent *agents.Agent, id uuid.UUID) error {
	inv, err := s.store.Get(ctx, agent.Email, id)
	if err != nil {
		return err
	}

	members, groupID, err := s.target(inv.Payload)
	if err != nil {
		return err
	}
	if err := members.RemovePending(ctx, groupID, inv.UUID); err != nil && !errors.Is(err, membership.ErrMemberNotFound) {
		return err
	}
	return s.store.Delete(ctx, inv.Recipient, inv.UUID)
}

// PropagateRename points the pending invitations of a renamed group at its
// new name. The rows already exist, so UpsertInvites resolves every item
// through its conflict path and only name and updated_at change.
func (s *Service) PropagateRename(ctx context.Context, t Type, oldName, newName string) (int, error) {
	if oldName == newName {
		return 0, nil
	}

	invs, err := s.store.ListByTarget(ctx, t, oldName)
	if err != nil {
		return 0, err
	}
	for _, inv := range invs {
		inv.Name = newName
	}
	if err := s.store.UpsertInvites(ctx, invs); err != nil {
		return 0, err
	}
	return len(invs), nil
}

// Withdraw deletes the invitations naming a deleted group
func (s *Service) Withdraw(ctx context.Context, t Type, name string) (int64, error) {
	return s.store.DeleteByTarget(ctx, t, name)
}

func (s *Service) target(p Payload) (MemberStore, int64, error) {
	switch change := p.(type) {
	case TeamChange:
		return s.teamMembers, change.TeamID, nil
	case OrganizationChange:
		return s.orgMembers, change.OrganizationID, nil
	default:
		return nil, 0, fmt.Errorf("%w: %T", ErrUnknownType, p)
	}
}

func normalizeRecipients(emails []string) ([]string, error) {
	seen := make(map[string]bool, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		email, err := agents.ValidateEmail(e)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", err, e)
		}
		if seen[email] {
			continue
		}
		seen[email] = true
		out = append(out, email)
	}
	if len(out) == 0 {
		return nil, agents.ErrInvalidEmail
	}
	return out, nil
}
