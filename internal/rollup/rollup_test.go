package rollup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/agentops/internal/db/dbtest"
	"github.com/openclaw/agentops/internal/store"
)

type countingRunner struct {
	calls atomic.Int32
	n     int64
	err   error
}

func (c *countingRunner) RollupSkillUsage(ctx context.Context) (int64, error) {
	c.calls.Add(1)
	return c.n, c.err
}

func TestRun(t *testing.T) {
	n, err := Run(context.Background(), &countingRunner{n: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = Run(context.Background(), &countingRunner{err: errors.New("db down")})
	assert.ErrorContains(t, err, "db down")
}

func TestRun_Store(t *testing.T) {
	st := store.New(dbtest.Open(t))
	n, err := Run(context.Background(), st)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	for _, expr := range []string{"", "every minute", "* * * *", "61 * * * *"} {
		_, err := NewScheduler(expr, &countingRunner{})
		assert.Error(t, err, "schedule %q", expr)
	}
}

func TestScheduler_Next(t *testing.T) {
	s, err := NewScheduler("@hourly", &countingRunner{})
	require.NoError(t, err)
	s.Start()
	defer s.Stop(context.Background())

	next := s.Next()
	assert.False(t, next.IsZero())
	assert.True(t, next.After(time.Now()))
	assert.LessOrEqual(t, time.Until(next), time.Hour)
	assert.Zero(t, next.Minute())
	assert.Zero(t, next.Second())
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s, err := NewScheduler("*/5 * * * *", &countingRunner{})
	require.NoError(t, err)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	s.Stop(ctx)
}
