package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestResolverResetStuckJobs(t *testing.T) {
	c := &clock{at(2024, 1, 2, 12, 0)}
	store, db := newTestStore(t, c)
	ctx := context.Background()

	job := createJob(t, store, shellJob("crashed", "true", ptrTime(at(2024, 1, 2, 0, 0))))
	markRunning(t, db, job.ID, at(2024, 1, 1, 12, 0))

	r := NewResolver(store, 0, c.Now, zaptest.NewLogger(t).Sugar())

	stuck, err := r.ResetStuckJobs(ctx)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, job.ID, stuck[0].ID)

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, got.IsRunning)

	again, err := r.ResetStuckJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestResolverStuckThreshold(t *testing.T) {
	c := &clock{at(2024, 1, 2, 12, 0)}
	store, db := newTestStore(t, c)
	ctx := context.Background()

	job := createJob(t, store, shellJob("busy", "true", nil))
	markRunning(t, db, job.ID, at(2024, 1, 2, 11, 30))

	r := NewResolver(store, time.Hour, c.Now, nil)
	stuck, err := r.ResetStuckJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, stuck, "started 30 minutes ago, under the threshold")

	c.Advance(31 * time.Minute)
	stuck, err = r.ResetStuckJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, stuck, 1)
}

func TestResolverIsJobDue(t *testing.T) {
	c := &clock{at(2024, 1, 1, 0, 1)}
	store, db := newTestStore(t, c)
	ctx := context.Background()
	r := NewResolver(store, 0, c.Now, nil)

	due := createJob(t, store, shellJob("due", "true", ptrTime(at(2024, 1, 1, 0, 0))))
	ok, err := r.IsJobDue(ctx, due.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	markRunning(t, db, due.ID, c.t)
	ok, err = r.IsJobDue(ctx, due.ID)
	require.NoError(t, err)
	assert.False(t, ok, "running jobs cannot start again")

	disabled := shellJob("disabled", "true", ptrTime(at(2024, 1, 1, 0, 0)))
	disabled.Disabled = true
	createJob(t, store, disabled)
	ok, err = r.IsJobDue(ctx, disabled.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.IsJobDue(ctx, 12345)
	require.NoError(t, err)
	assert.False(t, ok, "deleted jobs are not due")
}

func TestResolverDueJobsIncludesRunning(t *testing.T) {
	c := &clock{at(2024, 1, 1, 0, 1)}
	store, db := newTestStore(t, c)
	r := NewResolver(store, 0, c.Now, nil)

	a := createJob(t, store, shellJob("a", "true", ptrTime(at(2024, 1, 1, 0, 0))))
	createJob(t, store, shellJob("b", "true", ptrTime(at(2024, 1, 1, 0, 0))))
	markRunning(t, db, a.ID, c.t)

	jobs, err := r.DueJobs(context.Background())
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}
