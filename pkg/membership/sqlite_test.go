package membership

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/identity/pkg/storage/sqlitedb"
)

var sqliteSchema = []string{
	`CREATE TABLE agents (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE team_members (
		agent_id INTEGER NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
		team_id INTEGER NOT NULL,
		verification_code TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (agent_id, team_id)
	)`,
	`INSERT INTO agents (id, name, email) VALUES (1, 'Alice', 'alice@example.com'), (2, 'Bob', 'bob@example.com')`,
}

func newSQLiteStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db, err := sqlitedb.Open(sqliteSchema...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, TeamMembers), db
}

func TestMembershipLifecycle(t *testing.T) {
	ctx := context.Background()
	store, db := newSQLiteStore(t)

	require.NoError(t, store.AddVerified(ctx, db, 100, 1))

	members, err := store.List(ctx, 100)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, int64(1), members[0].AgentID)
	assert.True(t, members[0].Verified())

	code, err := store.Invite(ctx, 100, 2)
	require.NoError(t, err)

	var rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM team_members WHERE agent_id = 2`).Scan(&rows))
	assert.Equal(t, 1, rows)

	_, err = store.Invite(ctx, 100, 2)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	pending, err := store.FindByCode(ctx, 100, code)
	require.NoError(t, err)
	require.NotNil(t, pending.VerificationCode)
	assert.Equal(t, code, *pending.VerificationCode)
	createdAt := pending.CreatedAt

	require.NoError(t, store.Verify(ctx, pending))

	verified, err := store.Find(ctx, 100, 2)
	require.NoError(t, err)
	assert.True(t, verified.Verified())
	assert.Equal(t, int64(2), verified.AgentID)
	assert.Equal(t, int64(100), verified.GroupID)
	assert.True(t, createdAt.Equal(verified.CreatedAt))

	// a second verify changes nothing
	require.NoError(t, store.Verify(ctx, verified))

	assert.ErrorIs(t, store.Remove(ctx, 100, 1, 1), ErrCreatorMembership)
	require.NoError(t, store.Remove(ctx, 100, 2, 1))
	_, err = store.Find(ctx, 100, 2)
	assert.ErrorIs(t, err, ErrMemberNotFound)
}
