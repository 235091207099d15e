package schedule

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	chronotest "github.com/teranos/chronograph/internal/testing"
)

// clock is a settable time source shared by the store and the code under test
type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T, c *clock) (*SQLiteStore, *sql.DB) {
	t.Helper()
	db := chronotest.CreateTestDB(t)
	store := NewSQLiteStore(db, zaptest.NewLogger(t).Sugar())
	store.now = c.Now
	return store, db
}

func ptrTime(t time.Time) *time.Time { return &t }

func createJob(t *testing.T, store *SQLiteStore, job *Job) *Job {
	t.Helper()
	require.NoError(t, store.CreateJob(context.Background(), job))
	return job
}

func shellJob(name, command string, next *time.Time) *Job {
	return &Job{
		Name:         name,
		ShellCommand: command,
		RunInShell:   true,
		Frequency:    FrequencyDaily,
		NextRun:      next,
	}
}

// markRunning puts a job into the running state the way a crashed runner leaves it
func markRunning(t *testing.T, db *sql.DB, id int64, startedOn time.Time) {
	t.Helper()
	_, err := db.Exec(`UPDATE jobs SET is_running = 1, started_on = ? WHERE id = ?`, formatTime(startedOn), id)
	require.NoError(t, err)
}
