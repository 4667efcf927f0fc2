package agents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/identity/pkg/storage"
)

const agentColumns = `id, name, email, social_profile, created_at, updated_at`

// Store persists agents in PostgreSQL
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a new agent store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// FindOrCreate returns the agent owning email, creating it on first sight.
// The bool result is true when a new agent was inserted.
func (s *Store) FindOrCreate(ctx context.Context, email, name string) (*Agent, bool, error) {
	normalized, err := ValidateEmail(email)
	if err != nil {
		return nil, false, err
	}

	agent, err := s.GetByEmail(ctx, normalized)
	if err == nil {
		return agent, false, nil
	}
	if !errors.Is(err, ErrAgentNotFound) {
		return nil, false, err
	}

	now := s.now()
	query := `
		INSERT INTO agents (name, email, social_profile, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id
	`
	agent = &Agent{
		Name:          name,
		Email:         normalized,
		SocialProfile: json.RawMessage(`{}`),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = s.db.QueryRowContext(ctx, query, name, normalized, "{}", now).Scan(&agent.ID)
	if storage.IsUniqueViolation(err) {
		// lost a race with a concurrent first login
		agent, err = s.GetByEmail(ctx, normalized)
		return agent, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create agent: %w", err)
	}

	return agent, true, nil
}

// Get retrieves an agent by ID
func (s *Store) Get(ctx context.Context, id int64) (*Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1`
	return scanAgent(s.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves an agent by e-mail, compared after normalization
func (s *Store) GetByEmail(ctx context.Context, email string) (*Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE email = $1`
	return scanAgent(s.db.QueryRowContext(ctx, query, NormalizeEmail(email)))
}

// List returns every agent ordered by e-mail
func (s *Store) List(ctx context.Context) ([]*Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents ORDER BY email ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	return agents, nil
}

// Update changes an agent's name and social profile. A nil profile keeps the
// stored one.
func (s *Store) Update(ctx context.Context, id int64, name string, profile json.RawMessage) (*Agent, error) {
	now := s.now()

	var (
		result sql.Result
		err    error
	)
	if profile == nil {
		result, err = s.db.ExecContext(ctx,
			`UPDATE agents SET name = $1, updated_at = $2 WHERE id = $3`,
			name, now, id)
	} else {
		encoded, perr := normalizeProfile(profile)
		if perr != nil {
			return nil, perr
		}
		result, err = s.db.ExecContext(ctx,
			`UPDATE agents SET name = $1, social_profile = $2, updated_at = $3 WHERE id = $4`,
			name, encoded, now, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update agent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrAgentNotFound
	}

	return s.Get(ctx, id)
}

// Delete removes an agent and, by cascade, its memberships
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAgentNotFound
	}

	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAgent(row scanner) (*Agent, error) {
	agent := &Agent{}
	var profile []byte
	err := row.Scan(&agent.ID, &agent.Name, &agent.Email, &profile, &agent.CreatedAt, &agent.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	if len(profile) == 0 {
		profile = []byte(`{}`)
	}
	agent.SocialProfile = json.RawMessage(profile)
	return agent, nil
}
