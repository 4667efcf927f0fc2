package maintenance

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/identity/pkg/observability"
)

type fakePurger struct {
	n     int64
	err   error
	calls int
	panic bool
}

func (f *fakePurger) Purge(ctx context.Context) (int64, error) {
	f.calls++
	if f.panic {
		panic("purge exploded")
	}
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("purge called without deadline")
	}
	return f.n, f.err
}

type fakeRecorder struct {
	purged []int64
	stats  []sql.DBStats
}

func (f *fakeRecorder) SessionsPurged(n int64)          { f.purged = append(f.purged, n) }
func (f *fakeRecorder) RecordDBStats(stats sql.DBStats) { f.stats = append(f.stats, stats) }

func TestPurgeSessions(t *testing.T) {
	t.Run("records purged count", func(t *testing.T) {
		rec := &fakeRecorder{}
		s := NewScheduler(rec, nil)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		n, err := s.PurgeSessions(ctx, &fakePurger{n: 7})
		require.NoError(t, err)
		assert.Equal(t, int64(7), n)
		assert.Equal(t, []int64{7}, rec.purged)
	})

	t.Run("failure is not recorded", func(t *testing.T) {
		rec := &fakeRecorder{}
		var buf bytes.Buffer
		s := NewScheduler(rec, observability.NewLogger(observability.DebugLevel, &buf))
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_, err := s.PurgeSessions(ctx, &fakePurger{err: errors.New("db down")})
		assert.EqualError(t, err, "db down")
		assert.Empty(t, rec.purged)
		assert.Contains(t, buf.String(), "session purge failed")
	})

	t.Run("nil recorder", func(t *testing.T) {
		s := NewScheduler(nil, nil)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		n, err := s.PurgeSessions(ctx, &fakePurger{n: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

func TestScheduledJobs(t *testing.T) {
	rec := &fakeRecorder{}
	s := NewScheduler(rec, nil)
	purger := &fakePurger{n: 3}

	require.NoError(t, s.AddSessionPurge("@every 1h", purger))
	require.NoError(t, s.AddDBStats("@every 15s", func() sql.DBStats {
		return sql.DBStats{OpenConnections: 4, InUse: 1}
	}))
	assert.Equal(t, 2, s.Len())

	s.runAll()

	assert.Equal(t, 1, purger.calls)
	assert.Equal(t, []int64{3}, rec.purged)
	require.Len(t, rec.stats, 1)
	assert.Equal(t, 4, rec.stats[0].OpenConnections)
}

func TestScheduledPurgeRecoversPanic(t *testing.T) {
	var buf bytes.Buffer
	s := NewScheduler(&fakeRecorder{}, observability.NewLogger(observability.InfoLevel, &buf))
	require.NoError(t, s.AddSessionPurge("@hourly", &fakePurger{panic: true}))

	assert.NotPanics(t, s.runAll)
	assert.Contains(t, buf.String(), "PANIC recovered")
}

func TestInvalidSchedule(t *testing.T) {
	s := NewScheduler(&fakeRecorder{}, nil)

	err := s.AddSessionPurge("every hour", &fakePurger{})
	assert.ErrorContains(t, err, "failed to schedule session purge")

	err = s.AddDBStats("61 * * * *", func() sql.DBStats { return sql.DBStats{} })
	assert.ErrorContains(t, err, "failed to schedule db stats")
	assert.Equal(t, 0, s.Len())
}

func TestDBStatsWithoutRecorder(t *testing.T) {
	s := NewScheduler(nil, nil)
	require.NoError(t, s.AddDBStats("@every 1m", func() sql.DBStats { return sql.DBStats{} }))
	assert.Equal(t, 0, s.Len())
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(nil, nil)
	require.NoError(t, s.AddSessionPurge("@hourly", &fakePurger{}))
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
