package clientapps

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const appColumns = `id, agent_id, name, description, client_id, secret_hash, redirect_uris, created_at, updated_at`

// Store persists client apps
type Store struct {
	db      *sql.DB
	secrets SecretIssuer
	now     func() time.Time
	newID   func() uuid.UUID
}

// NewStore creates a store issuing secrets with secrets
func NewStore(db *sql.DB, secrets SecretIssuer) *Store {
	return &Store{db: db, secrets: secrets, now: time.Now, newID: uuid.New}
}

// Create registers an app for ownerID and returns it with its plaintext secret
func (s *Store) Create(ctx context.Context, ownerID int64, name, description string, redirectURIs []string) (*ClientApp, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", ErrNameRequired
	}
	uris, err := validateRedirectURIs(redirectURIs)
	if err != nil {
		return nil, "", err
	}
	encodedURIs, err := json.Marshal(uris)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode redirect uris: %w", err)
	}

	secret, hash, err := s.secrets.GenerateSecret()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate client secret: %w", err)
	}

	now := s.now()
	app := &ClientApp{
		AgentID:      ownerID,
		Name:         name,
		Description:  description,
		ClientID:     s.newID(),
		SecretHash:   hash,
		RedirectURIs: uris,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	query := `
		INSERT INTO client_apps (agent_id, name, description, client_id, secret_hash, redirect_uris, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id
	`
	err = s.db.QueryRowContext(ctx, query,
		ownerID, name, description, app.ClientID.String(), hash, string(encodedURIs), now,
	).Scan(&app.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create client app: %w", err)
	}

	return app, secret, nil
}

// Get retrieves an app by ID
func (s *Store) Get(ctx context.Context, id int64) (*ClientApp, error) {
	query := `SELECT ` + appColumns + ` FROM client_apps WHERE id = $1`
	return scanApp(s.db.QueryRowContext(ctx, query, id))
}

// GetByClientID retrieves an app by its public client ID
func (s *Store) GetByClientID(ctx context.Context, clientID uuid.UUID) (*ClientApp, error) {
	query := `SELECT ` + appColumns + ` FROM client_apps WHERE client_id = $1`
	return scanApp(s.db.QueryRowContext(ctx, query, clientID.String()))
}

// ListForAgent lists the apps owned by agentID, oldest first
func (s *Store) ListForAgent(ctx context.Context, agentID int64) ([]*ClientApp, error) {
	query := `SELECT ` + appColumns + ` FROM client_apps WHERE agent_id = $1 ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list client apps: %w", err)
	}
	defer rows.Close()

	apps := []*ClientApp{}
	for rows.Next() {
		app, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list client apps: %w", err)
	}
	return apps, nil
}

// Delete removes an app when actor owns it or is root
func (s *Store) Delete(ctx context.Context, id int64, actor Actor) error {
	app, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if actor == nil || !actor.CanManage(app.AgentID) {
		return ErrForbidden
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM client_apps WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete client app: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrAppNotFound
	}
	return nil
}

// Authenticate checks a client_id/secret pair
func (s *Store) Authenticate(ctx context.Context, clientID uuid.UUID, secret string) (*ClientApp, error) {
	app, err := s.GetByClientID(ctx, clientID)
	if errors.Is(err, ErrAppNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.secrets.VerifySecret(secret, app.SecretHash) {
		return nil, ErrInvalidCredentials
	}
	return app, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanApp(row scanner) (*ClientApp, error) {
	var (
		app      ClientApp
		clientID string
		uris     []byte
	)
	err := row.Scan(&app.ID, &app.AgentID, &app.Name, &app.Description, &clientID,
		&app.SecretHash, &uris, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAppNotFound
		}
		return nil, fmt.Errorf("failed to scan client app: %w", err)
	}

	if app.ClientID, err = uuid.Parse(clientID); err != nil {
		return nil, fmt.Errorf("invalid client_id %q: %w", clientID, err)
	}
	app.RedirectURIs = []string{}
	if len(uris) > 0 {
		if err := json.Unmarshal(uris, &app.RedirectURIs); err != nil {
			return nil, fmt.Errorf("failed to decode redirect uris: %w", err)
		}
	}
	return &app, nil
}
