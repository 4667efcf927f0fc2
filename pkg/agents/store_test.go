package agents

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var agentRowColumns = []string{"id", "name", "email", "social_profile", "created_at", "updated_at"}

// Test helper to create a new mock store
func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	store := NewStore(db)
	store.now = func() time.Time { return fixedNow }
	return store, mock, db
}

func TestFindOrCreate(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("existing agent", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, name, email, social_profile, created_at, updated_at FROM agents WHERE email = \$1`).
			WithArgs("alice@example.com").
			WillReturnRows(sqlmock.NewRows(agentRowColumns).
				AddRow(1, "Alice", "alice@example.com", []byte(`{}`), fixedNow, fixedNow))

		agent, created, err := store.FindOrCreate(context.Background(), "Alice@Example.com", "Alice")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, int64(1), agent.ID)
	})

	t.Run("creates with lower-cased email", func(t *testing.T) {
		mock.ExpectQuery(`FROM agents WHERE email = \$1`).
			WithArgs("bob@example.com").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO agents (name, email, social_profile, created_at, updated_at)`)).
			WithArgs("Bob", "bob@example.com", "{}", fixedNow).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

		agent, created, err := store.FindOrCreate(context.Background(), "  BOB@example.COM ", "Bob")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, int64(2), agent.ID)
		assert.Equal(t, "bob@example.com", agent.Email)
	})

	t.Run("concurrent insert falls back to lookup", func(t *testing.T) {
		mock.ExpectQuery(`FROM agents WHERE email = \$1`).
			WithArgs("carol@example.com").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`INSERT INTO agents`).
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectQuery(`FROM agents WHERE email = \$1`).
			WithArgs("carol@example.com").
			WillReturnRows(sqlmock.NewRows(agentRowColumns).
				AddRow(3, "Carol", "carol@example.com", []byte(`{}`), fixedNow, fixedNow))

		agent, created, err := store.FindOrCreate(context.Background(), "carol@example.com", "Carol")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, int64(3), agent.ID)
	})

	t.Run("invalid email", func(t *testing.T) {
		_, _, err := store.FindOrCreate(context.Background(), "nope", "Nope")
		assert.ErrorIs(t, err, ErrInvalidEmail)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`FROM agents WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(agentRowColumns).
			AddRow(1, "Alice", "alice@example.com", []byte(`{"github":"alice"}`), fixedNow, fixedNow))

	agent, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.JSONEq(t, `{"github":"alice"}`, string(agent.SocialProfile))

	mock.ExpectQuery(`FROM agents WHERE id = \$1`).
		WithArgs(int64(2)).
		WillReturnError(sql.ErrNoRows)

	_, err = store.Get(context.Background(), 2)
	assert.ErrorIs(t, err, ErrAgentNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`FROM agents ORDER BY email ASC`).
		WillReturnRows(sqlmock.NewRows(agentRowColumns).
			AddRow(1, "Alice", "alice@example.com", []byte(`{}`), fixedNow, fixedNow).
			AddRow(2, "Bob", "bob@example.com", nil, fixedNow, fixedNow))

	agents, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, json.RawMessage(`{}`), agents[1].SocialProfile)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	t.Run("name and profile", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE agents SET name = $1, social_profile = $2, updated_at = $3 WHERE id = $4`)).
			WithArgs("Alice B", `{"github":"ab"}`, fixedNow, int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`FROM agents WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(agentRowColumns).
				AddRow(1, "Alice B", "alice@example.com", []byte(`{"github":"ab"}`), fixedNow, fixedNow))

		agent, err := store.Update(context.Background(), 1, "Alice B", json.RawMessage(`{"github":"ab"}`))
		require.NoError(t, err)
		assert.Equal(t, "Alice B", agent.Name)
	})

	t.Run("name only", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE agents SET name = $1, updated_at = $2 WHERE id = $3`)).
			WithArgs("Alice", fixedNow, int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`FROM agents WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(agentRowColumns).
				AddRow(1, "Alice", "alice@example.com", []byte(`{}`), fixedNow, fixedNow))

		_, err := store.Update(context.Background(), 1, "Alice", nil)
		require.NoError(t, err)
	})

	t.Run("missing agent", func(t *testing.T) {
		mock.ExpectExec(`UPDATE agents SET name`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := store.Update(context.Background(), 9, "Ghost", nil)
		assert.ErrorIs(t, err, ErrAgentNotFound)
	})

	t.Run("profile must be an object", func(t *testing.T) {
		_, err := store.Update(context.Background(), 1, "Alice", json.RawMessage(`"text"`))
		assert.Error(t, err)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM agents WHERE id = $1`)).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Delete(context.Background(), 1))

	mock.ExpectExec(`DELETE FROM agents`).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.Delete(context.Background(), 2), ErrAgentNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
