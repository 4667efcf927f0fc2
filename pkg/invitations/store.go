package invitations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/identity/pkg/agents"
	"github.com/platinummonkey/identity/pkg/storage"
)

// Outcomes reported to a Recorder
const (
	OutcomeInserted = "inserted"
	OutcomeUpserted = "upserted"
	OutcomeFailed   = "failed"
)

// Recorder observes how each invitation write ended
type Recorder interface {
	InvitationStored(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) InvitationStored(string) {}

const invitationColumns = `recipient, uuid, type, name, data, created_at, updated_at`

// Store persists invitations in the updates table
type Store struct {
	db       *sql.DB
	recorder Recorder
	now      func() time.Time
}

// NewStore creates a new invitation store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, recorder: nopRecorder{}, now: time.Now}
}

// WithRecorder sets the recorder notified of every write
func (s *Store) WithRecorder(r Recorder) *Store {
	if r == nil {
		r = nopRecorder{}
	}
	s.recorder = r
	return s
}

func (s *Store) prepare(inv *Invitation) (string, error) {
	inv.Recipient = agents.NormalizeEmail(inv.Recipient)
	if err := inv.Validate(); err != nil {
		return "", err
	}
	data, err := EncodePayload(inv.Payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Insert stores a new invitation. An existing (recipient, uuid) pair yields a
// unique violation, recognised by storage.IsUniqueViolation.
func (s *Store) Insert(ctx context.Context, inv *Invitation) error {
	data, err := s.prepare(inv)
	if err != nil {
		return err
	}

	now := s.now()
	query := `
		INSERT INTO updates (recipient, uuid, type, name, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	if _, err := s.db.ExecContext(ctx, query, inv.Recipient, inv.UUID.String(), string(inv.Type()), inv.Name, data, now); err != nil {
		return fmt.Errorf("failed to insert invitation: %w", err)
	}

	inv.CreatedAt = now
	inv.UpdatedAt = now
	return nil
}

// Upsert stores inv, or on a (recipient, uuid) conflict updates only the
// name and updated_at of the stored row
func (s *Store) Upsert(ctx context.Context, inv *Invitation) error {
	data, err := s.prepare(inv)
	if err != nil {
		return err
	}

	now := s.now()
	query := `
		INSERT INTO updates (recipient, uuid, type, name, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (recipient, uuid) DO UPDATE
		SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, inv.Recipient, inv.UUID.String(), string(inv.Type()), inv.Name, data, now); err != nil {
		return fmt.Errorf("failed to upsert invitation: %w", err)
	}

	inv.UpdatedAt = now
	return nil
}

// UpsertInvites stores invs one at a time, in order. Each item is inserted;
// a unique violation turns the write into an Upsert. Any other error stops
// the batch and is returned as is: earlier items stay stored and later items
// are not attempted.
func (s *Store) UpsertInvites(ctx context.Context, invs []*Invitation) error {
	for _, inv := range invs {
		err := s.Insert(ctx, inv)
		if err == nil {
			s.recorder.InvitationStored(OutcomeInserted)
			continue
		}
		if !storage.IsUniqueViolation(err) {
			s.recorder.InvitationStored(OutcomeFailed)
			return err
		}

		if err := s.Upsert(ctx, inv); err != nil {
			s.recorder.InvitationStored(OutcomeFailed)
			return err
		}
		s.recorder.InvitationStored(OutcomeUpserted)
	}
	return nil
}

// Get retrieves the invitation addressed to recipient with id
func (s *Store) Get(ctx context.Context, recipient string, id uuid.UUID) (*Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM updates WHERE recipient = $1 AND uuid = $2`
	return scanInvitation(s.db.QueryRowContext(ctx, query, agents.NormalizeEmail(recipient), id.String()))
}

// ListForRecipient lists the invitations addressed to email, newest first
func (s *Store) ListForRecipient(ctx context.Context, email string) ([]*Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM updates WHERE recipient = $1 ORDER BY created_at DESC`
	return s.list(ctx, query, agents.NormalizeEmail(email))
}

// ListByTarget lists the invitations of type t naming name
func (s *Store) ListByTarget(ctx context.Context, t Type, name string) ([]*Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM updates WHERE type = $1 AND name = $2 ORDER BY created_at ASC`
	return s.list(ctx, query, string(t), name)
}

func (s *Store) list(ctx context.Context, query string, args ...interface{}) ([]*Invitation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invs []*Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invs = append(invs, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}

	return invs, nil
}

// Delete removes one invitation
func (s *Store) Delete(ctx context.Context, recipient string, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM updates WHERE recipient = $1 AND uuid = $2`,
		agents.NormalizeEmail(recipient), id.String())
	if err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrInvitationNotFound
	}

	return nil
}

// DeleteByTarget removes every invitation of type t naming name
func (s *Store) DeleteByTarget(ctx context.Context, t Type, name string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM updates WHERE type = $1 AND name = $2`, string(t), name)
	if err != nil {
		return 0, fmt.Errorf("failed to delete invitations: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInvitation(row scanner) (*Invitation, error) {
	inv := &Invitation{}
	var (
		id, typ string
		data    []byte
	)
	err := row.Scan(&inv.Recipient, &id, &typ, &inv.Name, &data, &inv.CreatedAt, &inv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	if inv.UUID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid invitation uuid %q: %w", id, err)
	}
	if inv.Payload, err = DecodePayload(data); err != nil {
		return nil, err
	}
	if string(inv.Payload.Type()) != typ {
		return nil, fmt.Errorf("%w: payload %q stored as %q", ErrUnknownType, inv.Payload.Type(), typ)
	}
	return inv, nil
}
