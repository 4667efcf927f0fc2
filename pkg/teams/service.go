package teams

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/identity/pkg/membership"
	"github.com/platinummonkey/identity/pkg/storage"
)

const teamColumns = `id, name, organization_id, creator_id, created_at, updated_at`

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db         *sql.DB
	members    *membership.Store
	orgMembers *membership.Store
	now        func() time.Time
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{
		db:         db,
		members:    membership.NewStore(db, membership.TeamMembers),
		orgMembers: membership.NewStore(db, membership.OrganizationMembers),
		now:        time.Now,
	}
}

// Members returns the team membership store
func (s *PostgresService) Members() *membership.Store {
	return s.members
}

// CreateTeam creates a team in organizationID with its creator as a confirmed member
func (s *PostgresService) CreateTeam(ctx context.Context, organizationID int64, name string, creatorID int64) (*Team, error) {
	name, err := ValidateName(name)
	if err != nil {
		return nil, err
	}

	ok, err := s.orgMembers.IsVerifiedMember(ctx, organizationID, creatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to check organization membership: %w", err)
	}
	if !ok {
		return nil, ErrNotOrganizationMember
	}

	now := s.now()
	team := &Team{
		Name:           name,
		OrganizationID: organizationID,
		CreatorID:      creatorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO teams (name, organization_id, creator_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			RETURNING id
		`
		if err := tx.QueryRowContext(ctx, query, name, organizationID, creatorID, now).Scan(&team.ID); err != nil {
			if storage.IsUniqueViolation(err) {
				return ErrDuplicateName
			}
			return fmt.Errorf("failed to create team: %w", err)
		}
		if err := s.members.AddVerified(ctx, tx, team.ID, creatorID); err != nil {
			return fmt.Errorf("failed to add creator: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return team, nil
}

// GetTeam retrieves a team by ID
func (s *PostgresService) GetTeam(ctx context.Context, id int64) (*Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE id = $1`
	return scanTeam(s.db.QueryRowContext(ctx, query, id))
}

// GetTeamByName retrieves a team by name
func (s *PostgresService) GetTeamByName(ctx context.Context, name string) (*Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE name = $1`
	return scanTeam(s.db.QueryRowContext(ctx, query, name))
}

// ListForAgent lists the teams agentID belongs to or is invited to
func (s *PostgresService) ListForAgent(ctx context.Context, agentID int64) ([]*AgentTeam, error) {
	query := `
		SELECT t.id, t.name, t.organization_id, t.creator_id, t.created_at, t.updated_at,
		       m.verification_code IS NULL AS verified
		FROM teams t
		JOIN team_members m ON m.team_id = t.id
		WHERE m.agent_id = $1
		ORDER BY t.name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []*AgentTeam
	for rows.Next() {
		team := &AgentTeam{}
		if err := rows.Scan(
			&team.ID, &team.Name, &team.OrganizationID, &team.CreatorID,
			&team.CreatedAt, &team.UpdatedAt, &team.Verified,
		); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}

	return teams, nil
}

// ListForOrganization lists the teams of an organization
func (s *PostgresService) ListForOrganization(ctx context.Context, organizationID int64) ([]*Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE organization_id = $1 ORDER BY name ASC`
	return s.list(ctx, query, organizationID)
}

// ListTeams lists every team
func (s *PostgresService) ListTeams(ctx context.Context) ([]*Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams ORDER BY name ASC`
	return s.list(ctx, query)
}

func (s *PostgresService) list(ctx context.Context, query string, args ...interface{}) ([]*Team, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}

	return teams, nil
}

// RenameTeam renames a team and returns its previous name
func (s *PostgresService) RenameTeam(ctx context.Context, id int64, name string) (string, error) {
	name, err := ValidateName(name)
	if err != nil {
		return "", err
	}

	var oldName string
	err = storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT name FROM teams WHERE id = $1 FOR UPDATE`, id).Scan(&oldName)
		if err == sql.ErrNoRows {
			return ErrTeamNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get team: %w", err)
		}
		if oldName == name {
			return nil
		}

		_, err = tx.ExecContext(ctx, `UPDATE teams SET name = $1, updated_at = $2 WHERE id = $3`, name, s.now(), id)
		if storage.IsUniqueViolation(err) {
			return ErrDuplicateName
		}
		if err != nil {
			return fmt.Errorf("failed to rename team: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return oldName, nil
}

// DeleteTeam deletes a team and, by cascade, its memberships
func (s *PostgresService) DeleteTeam(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrTeamNotFound
	}

	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTeam(row scanner) (*Team, error) {
	team := &Team{}
	err := row.Scan(&team.ID, &team.Name, &team.OrganizationID, &team.CreatorID, &team.CreatedAt, &team.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return team, nil
}
