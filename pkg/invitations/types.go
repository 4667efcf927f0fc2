package invitations

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvitationNotFound is returned when no invitation matches
	ErrInvitationNotFound = errors.New("invitation not found")
	// ErrUnknownType is returned for a payload type other than team or organization
	ErrUnknownType = errors.New("unknown invitation type")
	// ErrInvalidInvitation is returned for an invitation missing its recipient, id or payload
	ErrInvalidInvitation = errors.New("invalid invitation")
)

// Type tags the kind of change an invitation carries
type Type string

const (
	TypeTeam         Type = "team"
	TypeOrganization Type = "organization"
)

// ParseType validates a type tag
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeTeam, TypeOrganization:
		return Type(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

// Payload is the change applied when an invitation is accepted.
// It is either a TeamChange or an OrganizationChange.
type Payload interface {
	Type() Type
	isPayload()
}

// TeamChange grants membership of a team
type TeamChange struct {
	TeamID         int64 `json:"team_id"`
	OrganizationID int64 `json:"organization_id"`
}

// Type implements Payload
func (TeamChange) Type() Type { return TypeTeam }
func (TeamChange) isPayload() {}

// OrganizationChange grants membership of an organization
type OrganizationChange struct {
	OrganizationID int64 `json:"organization_id"`
}

// Type implements Payload
func (OrganizationChange) Type() Type { return TypeOrganization }
func (OrganizationChange) isPayload() {}

type envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodePayload wraps p in its {"type", "data"} envelope
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: missing payload", ErrInvalidInvitation)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return json.Marshal(envelope{Type: p.Type(), Data: data})
}

// DecodePayload reads a payload envelope
func DecodePayload(raw []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	switch env.Type {
	case TypeTeam:
		var change TeamChange
		if err := json.Unmarshal(env.Data, &change); err != nil {
			return nil, fmt.Errorf("failed to unmarshal team change: %w", err)
		}
		return change, nil
	case TypeOrganization:
		var change OrganizationChange
		if err := json.Unmarshal(env.Data, &change); err != nil {
			return nil, fmt.Errorf("failed to unmarshal organization change: %w", err)
		}
		return change, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// Invitation is a pending change addressed to an e-mail address. Its UUID is
// the verification code of the membership row it announces.
type Invitation struct {
	Recipient string
	UUID      uuid.UUID
	Name      string
	Payload   Payload
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Type returns the payload's type tag
func (i *Invitation) Type() Type {
	if i.Payload == nil {
		return ""
	}
	return i.Payload.Type()
}

// Validate checks the fields required to persist an invitation
func (i *Invitation) Validate() error {
	if i.Recipient == "" {
		return fmt.Errorf("%w: missing recipient", ErrInvalidInvitation)
	}
	if i.UUID == uuid.Nil {
		return fmt.Errorf("%w: missing uuid", ErrInvalidInvitation)
	}
	if i.Payload == nil {
		return fmt.Errorf("%w: missing payload", ErrInvalidInvitation)
	}
	return nil
}

type invitationJSON struct {
	Recipient string          `json:"recipient"`
	UUID      uuid.UUID       `json:"uuid"`
	Type      Type            `json:"type"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MarshalJSON renders the payload under "data" next to its type tag
func (i Invitation) MarshalJSON() ([]byte, error) {
	out := invitationJSON{
		Recipient: i.Recipient,
		UUID:      i.UUID,
		Type:      i.Type(),
		Name:      i.Name,
		Data:      json.RawMessage(`null`),
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
	if i.Payload != nil {
		data, err := json.Marshal(i.Payload)
		if err != nil {
			return nil, err
		}
		out.Data = data
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON
func (i *Invitation) UnmarshalJSON(b []byte) error {
	var in invitationJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	payload, err := DecodePayload(wrapEnvelope(in.Type, in.Data))
	if err != nil {
		return err
	}
	*i = Invitation{
		Recipient: in.Recipient,
		UUID:      in.UUID,
		Name:      in.Name,
		Payload:   payload,
		CreatedAt: in.CreatedAt,
		UpdatedAt: in.UpdatedAt,
	}
	return nil
}

func wrapEnvelope(t Type, data json.RawMessage) []byte {
	b, _ := json.Marshal(envelope{Type: t, Data: data})
	return b
}
