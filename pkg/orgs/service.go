package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/identity/pkg/membership"
	"github.com/platinummonkey/identity/pkg/storage"
)

const organizationColumns = `id, name, creator_id, created_at, updated_at`

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db      *sql.DB
	members *membership.Store
	now     func() time.Time
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{
		db:      db,
		members: membership.NewStore(db, membership.OrganizationMembers),
		now:     time.Now,
	}
}

// Members returns the organization membership store
func (s *PostgresService) Members() *membership.Store {
	return s.members
}

// CreateOrganization creates an organization with its creator as a confirmed member
func (s *PostgresService) CreateOrganization(ctx context.Context, name string, creatorID int64) (*Organization, error) {
	name, err := ValidateName(name)
	if err != nil {
		return nil, err
	}

	now := s.now()
	org := &Organization{Name: name, CreatorID: creatorID, CreatedAt: now, UpdatedAt: now}

	err = storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		query := `
			INSERT INTO organizations (name, creator_id, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
			RETURNING id
		`
		if err := tx.QueryRowContext(ctx, query, name, creatorID, now).Scan(&org.ID); err != nil {
			if storage.IsUniqueViolation(err) {
				return ErrDuplicateName
			}
			return fmt.Errorf("failed to create organization: %w", err)
		}
		if err := s.members.AddVerified(ctx, tx, org.ID, creatorID); err != nil {
			return fmt.Errorf("failed to add creator: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return org, nil
}

// GetOrganization retrieves an organization by ID
func (s *PostgresService) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1`
	return scanOrganization(s.db.QueryRowContext(ctx, query, id))
}

// GetOrganizationByName retrieves an organization by name
func (s *PostgresService) GetOrganizationByName(ctx context.Context, name string) (*Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE name = $1`
	return scanOrganization(s.db.QueryRowContext(ctx, query, name))
}

// ListForAgent lists the organizations agentID belongs to or is invited to
func (s *PostgresService) ListForAgent(ctx context.Context, agentID int64) ([]*AgentOrganization, error) {
	query := `
		SELECT o.id, o.name, o.creator_id, o.created_at, o.updated_at,
		       m.verification_code IS NULL AS verified
		FROM organizations o
		JOIN organization_members m ON m.organization_id = o.id
		WHERE m.agent_id = $1
		ORDER BY o.name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*AgentOrganization
	for rows.Next() {
		org := &AgentOrganization{}
		if err := rows.Scan(&org.ID, &org.Name, &org.CreatorID, &org.CreatedAt, &org.UpdatedAt, &org.Verified); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	return orgs, nil
}

// ListOrganizations lists every organization
func (s *PostgresService) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations ORDER BY name ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	return orgs, nil
}

// RenameOrganization renames an organization and returns its previous name
func (s *PostgresService) RenameOrganization(ctx context.Context, id int64, name string) (string, error) {
	name, err := ValidateName(name)
	if err != nil {
		return "", err
	}

	var oldName string
	err = storage.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT name FROM organizations WHERE id = $1 FOR UPDATE`, id).Scan(&oldName)
		if err == sql.ErrNoRows {
			return ErrOrganizationNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get organization: %w", err)
		}
		if oldName == name {
			return nil
		}

		_, err = tx.ExecContext(ctx, `UPDATE organizations SET name = $1, updated_at = $2 WHERE id = $3`, name, s.now(), id)
		if storage.IsUniqueViolation(err) {
			return ErrDuplicateName
		}
		if err != nil {
			return fmt.Errorf("failed to rename organization: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return oldName, nil
}

// DeleteOrganization deletes an organization. Memberships and teams cascade.
func (s *PostgresService) DeleteOrganization(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrOrganizationNotFound
	}

	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrganization(row scanner) (*Organization, error) {
	org := &Organization{}
	err := row.Scan(&org.ID, &org.Name, &org.CreatorID, &org.CreatedAt, &org.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}
