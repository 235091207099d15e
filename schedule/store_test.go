package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/chronograph/errors"
)

func TestCreateAndGetJob(t *testing.T) {
	c := &clock{at(2024, 1, 1, 0, 0)}
	store, _ := newTestStore(t, c)
	ctx := context.Background()

	job := createJob(t, store, &Job{
		Name:         "report",
		ShellCommand: "make report",
		Args:         `--title "weekly report"`,
		Frequency:    FrequencyWeekly,
		Params:       "day_of_week=4",
		NextRun:      ptrTime(at(2024, 1, 5, 6, 0)),
		Atomic:       true,
	})
	require.NotZero(t, job.ID)

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "report", got.Name)
	assert.Equal(t, `--title "weekly report"`, got.Args)
	assert.Equal(t, FrequencyWeekly, got.Frequency)
	assert.Equal(t, at(2024, 1, 5, 6, 0), *got.NextRun)
	assert.True(t, got.Atomic)
	assert.False(t, got.IsRunning)
	assert.Nil(t, got.LastRunSuccessful)
	assert.Equal(t, c.t, got.CreatedAt)
}

func TestCreateJobRejectsInvalid(t *testing.T) {
	store, _ := newTestStore(t, &clock{at(2024, 1, 1, 0, 0)})

	err := store.CreateJob(context.Background(), &Job{Name: "broken", Frequency: FrequencyDaily})
	assert.True(t, errors.IsInvalidJobError(err))
}

func TestGetJobNotFound(t *testing.T) {
	store, _ := newTestStore(t, &clock{at(2024, 1, 1, 0, 0)})

	_, err := store.GetJob(context.Background(), 404)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestUpdateAndDeleteJob(t *testing.T) {
	store, _ := newTestStore(t, &clock{at(2024, 1, 1, 0, 0)})
	ctx := context.Background()

	job := createJob(t, store, shellJob("a", "true", nil))
	job.Frequency = FrequencyHourly
	job.Params = "interval=6"
	require.NoError(t, store.UpdateJob(ctx, job))

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, FrequencyHourly, got.Frequency)
	assert.Equal(t, "interval=6", got.Params)

	require.NoError(t, store.DeleteJob(ctx, job.ID))
	assert.True(t, errors.IsNotFoundError(store.DeleteJob(ctx, job.ID)))
	assert.True(t, errors.IsNotFoundError(store.UpdateJob(ctx, job)))
}

func TestListDueJobs(t *testing.T) {
	c := &clock{at(2024, 1, 1, 0, 1)}
	store, db := newTestStore(t, c)
	ctx := context.Background()

	past := createJob(t, store, shellJob("past", "true", ptrTime(at(2024, 1, 1, 0, 0))))
	createJob(t, store, shellJob("future", "true", ptrTime(at(2024, 1, 1, 0, 2))))
	createJob(t, store, shellJob("unscheduled", "true", nil))
	adhoc := createJob(t, store, &Job{Name: "adhoc", ShellCommand: "true", Frequency: FrequencyOnce, AdhocRun: true})
	disabled := shellJob("disabled", "true", ptrTime(at(2023, 1, 1, 0, 0)))
	disabled.Disabled = true
	createJob(t, store, disabled)
	running := createJob(t, store, shellJob("running", "true", ptrTime(at(2024, 1, 1, 0, 0))))
	markRunning(t, db, running.ID, c.t)

	due, err := store.ListDueJobs(ctx, c.t)
	require.NoError(t, err)

	var names []string
	for _, j := range due {
		names = append(names, j.Name)
	}
	assert.Equal(t, []string{"past", "adhoc", "running"}, names)
	assert.Equal(t, past.ID, due[0].ID)
	assert.Equal(t, adhoc.ID, due[1].ID)
}

func TestListJobsOrdering(t *testing.T) {
	c := &clock{at(2024, 1, 1, 0, 0)}
	store, db := newTestStore(t, c)
	ctx := context.Background()

	createJob(t, store, shellJob("later", "true", ptrTime(at(2024, 2, 1, 0, 0))))
	createJob(t, store, shellJob("sooner", "true", ptrTime(at(2024, 1, 2, 0, 0))))
	createJob(t, store, shellJob("never", "true", nil))
	off := shellJob("off", "true", ptrTime(at(2024, 1, 1, 0, 0)))
	off.Disabled = true
	createJob(t, store, off)
	queued := shellJob("queued", "true", nil)
	queued.AdhocRun = true
	createJob(t, store, queued)
	busy := createJob(t, store, shellJob("busy", "true", ptrTime(at(2024, 3, 1, 0, 0))))
	markRunning(t, db, busy.ID, c.t)

	names := func(jobs []*Job) []string {
		var out []string
		for _, j := range jobs {
			out = append(out, j.Name)
		}
		return out
	}

	jobs, err := store.ListJobs(ctx, JobFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"busy", "queued", "sooner", "later", "never"}, names(jobs))

	jobs, err = store.ListJobs(ctx, JobFilter{IncludeDisabled: true, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"busy", "queued", "sooner"}, names(jobs))

	jobs, err = store.ListJobs(ctx, JobFilter{IncludeDisabled: true})
	require.NoError(t, err)
	assert.Equal(t, "off", jobs[len(jobs)-1].Name)
}

func TestClaimJob(t *testing.T) {
	c := &clock{at(2024, 1, 1, 0, 1)}
	store, _ := newTestStore(t, c)
	ctx := context.Background()

	job := createJob(t, store, shellJob("nightly", "true", ptrTime(at(2024, 1, 1, 0, 0))))

	claimed, run, err := store.ClaimJob(ctx, job.ID, c.t)
	require.NoError(t, err)
	assert.True(t, claimed.IsRunning)
	assert.Equal(t, c.t, *claimed.StartedOn)
	assert.Equal(t, c.t, run.RunDate)
	assert.Nil(t, run.EndDate)
	assert.NotEmpty(t, run.ID)

	// a second claim loses
	_, _, err = store.ClaimJob(ctx, job.ID, c.t)
	assert.True(t, errors.Is(err, errors.ErrNotDue))

	// the open log is visible but not the latest finished one
	logs, err := store.ListLogs(ctx, LogFilter{JobID: job.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Finished())
	_, err = store.LatestLog(ctx, job.ID)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestClaimJobNotDueOrMissing(t *testing.T) {
	c := &clock{at(2024, 1, 1, 0, 0)}
	store, _ := newTestStore(t, c)
	ctx := context.Background()

	future := createJob(t, store, shellJob("future", "true", ptrTime(at(2024, 6, 1, 0, 0))))
	_, _, err := store.ClaimJob(ctx, future.ID, c.t)
	assert.True(t, errors.Is(err, errors.ErrNotDue))

	_, _, err = store.ClaimJob(ctx, 999, c.t)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestClaimJobClearsAdhocFlag(t *testing.T) {
	c := &clock{at(2024, 1, 1, 0, 0)}
	store, _ := newTestStore(t, c)
	ctx := context.Background()

	job := createJob(t, store, shellJob("manual", "true", ptrTime(at(2024, 6, 1, 0, 0))))
	require.NoError(t, store.RequestAdhocRun(ctx, job.ID))

	claimed, _, err := store.ClaimJob(ctx, job.ID, c.t)
	require.NoError(t, err)
	assert.False(t, claimed.AdhocRun)

	assert.True(t, errors.IsNotFoundError(store.RequestAdhocRun(ctx, 999)))
}

func TestFinishRun(t *testing.T) {
	c := &clock{at(2024, 1, 1, 0, 1)}
	store, _ := newTestStore(t, c)
	ctx := context.Background()

	job := createJob(t, store, shellJob("nightly", "true", ptrTime(at(2024, 1, 1, 0, 0))))
	claimed, run, err := store.ClaimJob(ctx, job.ID, c.t)
	require.NoError(t, err)

	c.Advance(30 * time.Second)
	success := true
	run.EndDate = ptrTime(c.t)
	run.Stdout = "ok\n"
	run.Success = true
	claimed.LastRun = ptrTime(run.RunDate)
	claimed.LastRunSuccessful = &success
	claimed.NextRun = ptrTime(at(2024, 1, 2, 0, 0))
	require.NoError(t, store.FinishRun(ctx, claimed, run))
	assert.False(t, claimed.IsRunning)

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, got.IsRunning)
	assert.Nil(t, got.StartedOn)
	assert.Equal(t, at(2024, 1, 2, 0, 0), *got.NextRun)
	require.NotNil(t, got.LastRunSuccessful)
	assert.True(t, *got.LastRunSuccessful)

	latest, err := store.LatestLog(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.ID)
	assert.Equal(t, "ok\n", latest.Stdout)
	d, ok := latest.Duration()
	assert.True(t, ok)
	assert.Equal(t, 30*time.Second, d)
}

func TestFinishRunRequiresEndDate(t *testing.T) {
	store, _ := newTestStore(t, &clock{at(2024, 1, 1, 0, 0)})

	err := store.FinishRun(context.Background(), &Job{ID: 1}, &Log{ID: "x"})
	assert.Error(t, err)
}

func TestResetStuckJobs(t *testing.T) {
	c := &clock{at(2024, 1, 2, 12, 0)}
	store, db := newTestStore(t, c)
	ctx := context.Background()

	old := createJob(t, store, shellJob("old", "true", nil))
	markRunning(t, db, old.ID, at(2024, 1, 1, 12, 0))
	recent := createJob(t, store, shellJob("recent", "true", nil))
	markRunning(t, db, recent.ID, at(2024, 1, 2, 11, 59))
	createJob(t, store, shellJob("idle", "true", nil))

	// threshold: only the job started before the cutoff
	stuck, err := store.ResetStuckJobs(ctx, ptrTime(at(2024, 1, 2, 11, 0)))
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, "old", stuck[0].Name)
	assert.True(t, stuck[0].IsRunning, "report shows the state before the reset")

	// no threshold: everything still running
	stuck, err = store.ResetStuckJobs(ctx, nil)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, "recent", stuck[0].Name)

	stuck, err = store.ResetStuckJobs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, stuck)

	got, err := store.GetJob(ctx, old.ID)
	require.NoError(t, err)
	assert.False(t, got.IsRunning)
	assert.Nil(t, got.StartedOn)
}

func TestSetDisabledAndResetJobs(t *testing.T) {
	c := &clock{at(2024, 1, 1, 0, 0)}
	store, db := newTestStore(t, c)
	ctx := context.Background()

	a := createJob(t, store, shellJob("a", "true", nil))
	b := createJob(t, store, shellJob("b", "true", nil))

	n, err := store.SetDisabled(ctx, []int64{a.ID, b.ID, 999}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := store.GetJob(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.Disabled)

	n, err = store.SetDisabled(ctx, nil, false)
	require.NoError(t, err)
	assert.Zero(t, n)

	markRunning(t, db, a.ID, c.t)
	n, err = store.ResetJobs(ctx, []int64{a.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err = store.GetJob(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsRunning)
}

func TestLogQueriesAndPruning(t *testing.T) {
	c := &clock{at(2024, 1, 1, 0, 0)}
	store, db := newTestStore(t, c)
	ctx := context.Background()

	job := createJob(t, store, shellJob("j", "true", nil))
	insert := func(id string, runDate time.Time, finished, success bool) {
		var end interface{}
		if finished {
			end = formatTime(runDate.Add(time.Second))
		}
		_, err := db.Exec(`INSERT INTO logs (id, job_id, run_date, end_date, success) VALUES (?, ?, ?, ?, ?)`,
			id, job.ID, formatTime(runDate), end, success)
		require.NoError(t, err)
	}
	insert("old-ok", at(2023, 6, 1, 0, 0), true, true)
	insert("old-crashed", at(2023, 6, 2, 0, 0), false, false)
	insert("new-failed", at(2024, 1, 1, 0, 0), true, false)

	logs, err := store.ListLogs(ctx, LogFilter{})
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "new-failed", logs[0].ID)

	logs, err = store.ListLogs(ctx, LogFilter{FailedOnly: true})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "new-failed", logs[0].ID)

	got, err := store.GetLog(ctx, "old-ok")
	require.NoError(t, err)
	assert.True(t, got.Success)
	_, err = store.GetLog(ctx, "missing")
	assert.True(t, errors.IsNotFoundError(err))

	n, err := store.DeleteLogsBefore(ctx, at(2023, 12, 1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	logs, err = store.ListLogs(ctx, LogFilter{JobID: job.ID})
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	require.NoError(t, store.DeleteJob(ctx, job.ID))
	logs, err = store.ListLogs(ctx, LogFilter{})
	require.NoError(t, err)
	assert.Empty(t, logs, "logs cascade with their job")
}

func TestVacuum(t *testing.T) {
	store, _ := newTestStore(t, &clock{at(2024, 1, 1, 0, 0)})
	assert.NoError(t, store.Vacuum(context.Background()))
}
