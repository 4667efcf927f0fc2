package membership

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/identity/pkg/storage"
)

// Store reads and writes one member table
type Store struct {
	db    *sql.DB
	table Table
	now   func() time.Time
}

// NewStore creates a store over the given member table
func NewStore(db *sql.DB, table Table) *Store {
	return &Store{db: db, table: table, now: time.Now}
}

// Table returns the table the store manages
func (s *Store) Table() Table {
	return s.table
}

// AddVerified inserts a confirmed membership. It runs on q so that group
// creation can add the creator in the same transaction.
func (s *Store) AddVerified(ctx context.Context, q storage.Querier, groupID, agentID int64) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (agent_id, %s, verification_code, created_at, updated_at)
		VALUES ($1, $2, NULL, $3, $3)
	`, s.table.Name, s.table.GroupColumn)

	if _, err := q.ExecContext(ctx, query, agentID, groupID, s.now()); err != nil {
		if storage.IsUniqueViolation(err) {
			return ErrAlreadyMember
		}
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// Invite inserts a pending membership and returns its verification code
func (s *Store) Invite(ctx context.Context, groupID, agentID int64) (uuid.UUID, error) {
	code := uuid.New()
	query := fmt.Sprintf(`
		INSERT INTO %s (agent_id, %s, verification_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`, s.table.Name, s.table.GroupColumn)

	if _, err := s.db.ExecContext(ctx, query, agentID, groupID, code.String(), s.now()); err != nil {
		if storage.IsUniqueViolation(err) {
			return uuid.Nil, ErrAlreadyMember
		}
		return uuid.Nil, fmt.Errorf("failed to invite member: %w", err)
	}
	return code, nil
}

// Find returns the membership of agentID in groupID or ErrMemberNotFound
func (s *Store) Find(ctx context.Context, groupID, agentID int64) (*Member, error) {
	query := fmt.Sprintf(`
		SELECT agent_id, %[2]s, verification_code, created_at, updated_at
		FROM %[1]s
		WHERE %[2]s = $1 AND agent_id = $2
	`, s.table.Name, s.table.GroupColumn)

	return s.scanOne(s.db.QueryRowContext(ctx, query, groupID, agentID))
}

// FindByCode returns the pending membership carrying code
func (s *Store) FindByCode(ctx context.Context, groupID int64, code uuid.UUID) (*Member, error) {
	query := fmt.Sprintf(`
		SELECT agent_id, %[2]s, verification_code, created_at, updated_at
		FROM %[1]s
		WHERE %[2]s = $1 AND verification_code = $2
	`, s.table.Name, s.table.GroupColumn)

	return s.scanOne(s.db.QueryRowContext(ctx, query, groupID, code.String()))
}

func (s *Store) scanOne(row *sql.Row) (*Member, error) {
	member := &Member{}
	var code sql.NullString
	err := row.Scan(&member.AgentID, &member.GroupID, &code, &member.CreatedAt, &member.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	if err := setCode(member, code); err != nil {
		return nil, err
	}
	return member, nil
}

// Verify accepts a pending membership. Only verification_code and updated_at
// change; verifying an accepted membership succeeds without effect.
func (s *Store) Verify(ctx context.Context, member *Member) error {
	if member.Verified() {
		if _, err := s.Find(ctx, member.GroupID, member.AgentID); err != nil {
			return err
		}
		return nil
	}

	now := s.now()
	query := fmt.Sprintf(`
		UPDATE %s SET verification_code = NULL, updated_at = $1
		WHERE %s = $2 AND agent_id = $3
	`, s.table.Name, s.table.GroupColumn)

	result, err := s.db.ExecContext(ctx, query, now, member.GroupID, member.AgentID)
	if err != nil {
		return fmt.Errorf("failed to verify member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMemberNotFound
	}

	member.VerificationCode = nil
	member.UpdatedAt = now
	return nil
}

// List returns the members of groupID with their agent's name and e-mail,
// oldest first
func (s *Store) List(ctx context.Context, groupID int64) ([]*Member, error) {
	query := fmt.Sprintf(`
		SELECT m.agent_id, m.%[2]s, m.verification_code, m.created_at, m.updated_at,
		       a.name, a.email
		FROM %[1]s m
		JOIN agents a ON a.id = m.agent_id
		WHERE m.%[2]s = $1
		ORDER BY m.created_at ASC
	`, s.table.Name, s.table.GroupColumn)

	rows, err := s.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		member := &Member{}
		var code sql.NullString
		if err := rows.Scan(
			&member.AgentID, &member.GroupID, &code, &member.CreatedAt, &member.UpdatedAt,
			&member.Name, &member.Email,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		if err := setCode(member, code); err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	return members, nil
}

// Remove deletes the membership of agentID. The creator's row is protected.
func (s *Store) Remove(ctx context.Context, groupID, agentID, creatorID int64) error {
	if agentID == creatorID {
		return ErrCreatorMembership
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND agent_id = $2`, s.table.Name, s.table.GroupColumn)
	result, err := s.db.ExecContext(ctx, query, groupID, agentID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMemberNotFound
	}

	return nil
}

// RemovePending deletes the pending membership identified by code
func (s *Store) RemovePending(ctx context.Context, groupID int64, code uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND verification_code = $2`, s.table.Name, s.table.GroupColumn)
	result, err := s.db.ExecContext(ctx, query, groupID, code.String())
	if err != nil {
		return fmt.Errorf("failed to remove pending member: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrMemberNotFound
	}

	return nil
}

// IsVerifiedMember reports whether agentID has an accepted membership
func (s *Store) IsVerifiedMember(ctx context.Context, groupID, agentID int64) (bool, error) {
	member, err := s.Find(ctx, groupID, agentID)
	if err == ErrMemberNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return member.Verified(), nil
}

func setCode(member *Member, code sql.NullString) error {
	if !code.Valid {
		return nil
	}
	parsed, err := uuid.Parse(code.String)
	if err != nil {
		return fmt.Errorf("invalid verification code %q: %w", code.String, err)
	}
	member.VerificationCode = &parsed
	return nil
}
