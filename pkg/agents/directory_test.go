package agents

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectory(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	dir := NewDirectory(store, DirectoryConfig{Size: 10, TTL: time.Minute})
	ctx := context.Background()

	t.Run("lookup caches", func(t *testing.T) {
		mock.ExpectQuery(`FROM agents WHERE email = \$1`).
			WithArgs("alice@example.com").
			WillReturnRows(sqlmock.NewRows(agentRowColumns).
				AddRow(1, "Alice", "alice@example.com", []byte(`{}`), fixedNow, fixedNow))

		first, err := dir.Lookup(ctx, "Alice@example.com")
		require.NoError(t, err)

		// served from cache, no query expected
		second, err := dir.Lookup(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 1, dir.Len())

		// callers get copies
		second.IsSuper = true
		third, err := dir.Lookup(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.False(t, third.IsSuper)
	})

	t.Run("find or create hits cache", func(t *testing.T) {
		agent, created, err := dir.FindOrCreate(ctx, "alice@example.com", "Alice")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, int64(1), agent.ID)
	})

	t.Run("get by id skips cache", func(t *testing.T) {
		mock.ExpectQuery(`FROM agents WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(agentRowColumns).
				AddRow(1, "Alice", "alice@example.com", []byte(`{}`), fixedNow, fixedNow))

		agent, err := dir.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", agent.Email)
	})

	t.Run("update invalidates", func(t *testing.T) {
		mock.ExpectExec(`UPDATE agents SET name`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`FROM agents WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(agentRowColumns).
				AddRow(1, "Alice Renamed", "alice@example.com", []byte(`{}`), fixedNow, fixedNow))

		_, err := dir.Update(ctx, 1, "Alice Renamed", nil)
		require.NoError(t, err)
		assert.Equal(t, 0, dir.Len())
	})

	t.Run("delete invalidates", func(t *testing.T) {
		mock.ExpectQuery(`FROM agents WHERE email = \$1`).
			WithArgs("alice@example.com").
			WillReturnRows(sqlmock.NewRows(agentRowColumns).
				AddRow(1, "Alice Renamed", "alice@example.com", []byte(`{}`), fixedNow, fixedNow))
		_, err := dir.Lookup(ctx, "alice@example.com")
		require.NoError(t, err)
		require.Equal(t, 1, dir.Len())

		mock.ExpectQuery(`FROM agents WHERE id = \$1`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(agentRowColumns).
				AddRow(1, "Alice Renamed", "alice@example.com", []byte(`{}`), fixedNow, fixedNow))
		mock.ExpectExec(`DELETE FROM agents`).
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, dir.Delete(ctx, 1))
		assert.Equal(t, 0, dir.Len())
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
