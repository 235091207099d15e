package schedule

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/chronograph/errors"
	"github.com/teranos/chronograph/logger"
)

const jobColumns = `id, name, command, shell_command, args, run_in_shell, atomic,
	frequency, params, next_run, last_run, last_run_successful,
	is_running, started_on, disabled, adhoc_run, created_at, updated_at`

// SQLiteStore implements Store on the schema in db/sqlite/migrations
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewSQLiteStore creates a store over an opened, migrated database
func NewSQLiteStore(db *sql.DB, log *zap.SugaredLogger) *SQLiteStore {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &SQLiteStore{
		db:     db,
		logger: logger.AddDBSymbol(log),
		now:    time.Now,
	}
}

// CreateJob validates and inserts a job, filling in ID and timestamps
func (s *SQLiteStore) CreateJob(ctx context.Context, job *Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (
			name, command, shell_command, args, run_in_shell, atomic,
			frequency, params, next_run, disabled, adhoc_run,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.Name, job.Command, job.ShellCommand, job.Args, job.RunInShell, job.Atomic,
		string(job.Frequency), job.Params, formatTimePtr(job.NextRun), job.Disabled, job.AdhocRun,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to create job %q", job.Name)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to read new job id")
	}
	job.ID = id
	job.CreatedAt, job.UpdatedAt = now, now

	s.logger.Debugw("Created job", logger.FieldJobID, id, logger.FieldJobName, job.Name)
	return nil
}

// GetJob retrieves a job by ID
func (s *SQLiteStore) GetJob(ctx context.Context, id int64) (*Job, error) {
	return getJob(ctx, s.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getJob(ctx context.Context, q queryRower, id int64) (*Job, error) {
	row := q.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("job %d", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get job %d", id)
	}
	return job, nil
}

// UpdateJob saves a job's definition and schedule. Run state (is_running,
// started_on, last_run) belongs to the executor and is left alone.
func (s *SQLiteStore) UpdateJob(ctx context.Context, job *Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET
			name = ?, command = ?, shell_command = ?, args = ?, run_in_shell = ?, atomic = ?,
			frequency = ?, params = ?, next_run = ?, disabled = ?, adhoc_run = ?,
			updated_at = ?
		WHERE id = ?`,
		job.Name, job.Command, job.ShellCommand, job.Args, job.RunInShell, job.Atomic,
		string(job.Frequency), job.Params, formatTimePtr(job.NextRun), job.Disabled, job.AdhocRun,
		formatTime(now), job.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update job %d", job.ID)
	}
	if err := expectRows(res, 1, "job %d", job.ID); err != nil {
		return err
	}
	job.UpdatedAt = now
	return nil
}

// DeleteJob removes a job and, through the foreign key, its logs
func (s *SQLiteStore) DeleteJob(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete job %d", id)
	}
	return expectRows(res, 1, "job %d", id)
}

// ListJobs orders running jobs first, then queued, then enabled, then by next run
func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []interface{}
	if !filter.IncludeDisabled {
		query += ` WHERE disabled = 0`
	}
	query += ` ORDER BY is_running DESC, adhoc_run DESC, disabled ASC, next_run IS NULL, next_run ASC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	return queryJobs(ctx, s.db, query, args...)
}

// ResetStuckJobs clears jobs left running by a runner that never finalized them
func (s *SQLiteStore) ResetStuckJobs(ctx context.Context, startedBefore *time.Time) ([]*Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin stuck job reset")
	}
	defer tx.Rollback()

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE is_running = 1`
	var args []interface{}
	if startedBefore != nil {
		query += ` AND started_on < ?`
		args = append(args, formatTime(*startedBefore))
	}
	query += ` ORDER BY id`

	stuck, err := queryJobs(ctx, tx, query, args...)
	if err != nil {
		return nil, err
	}

	now := formatTime(s.now())
	for _, job := range stuck {
		if _, err := tx.ExecContext(ctx,
			`UPDATE jobs SET is_running = 0, started_on = NULL, updated_at = ? WHERE id = ?`,
			now, job.ID,
		); err != nil {
			return nil, errors.Wrapf(err, "failed to reset stuck job %d", job.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit stuck job reset")
	}

	if len(stuck) > 0 {
		s.logger.Infow("Reset stuck jobs", logger.FieldCount, len(stuck))
	}
	return stuck, nil
}

const duePredicate = `disabled = 0 AND (adhoc_run = 1 OR (next_run IS NOT NULL AND next_run <= ?))`

// ListDueJobs returns enabled jobs that are queued ad hoc or scheduled at or before now
func (s *SQLiteStore) ListDueJobs(ctx context.Context, now time.Time) ([]*Job, error) {
	return queryJobs(ctx, s.db,
		`SELECT `+jobColumns+` FROM jobs WHERE `+duePredicate+` ORDER BY id`,
		formatTime(now),
	)
}

// ClaimJob transitions a due job to running and opens its log
func (s *SQLiteStore) ClaimJob(ctx context.Context, id int64, now time.Time) (*Job, *Log, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to begin claim of job %d", id)
	}
	defer tx.Rollback()

	ts := formatTime(now)
	res, err := tx.ExecContext(ctx, `
		UPDATE jobs SET is_running = 1, started_on = ?, adhoc_run = 0, updated_at = ?
		WHERE id = ? AND is_running = 0 AND `+duePredicate,
		ts, ts, id, ts,
	)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to claim job %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to claim job %d", id)
	}
	if n == 0 {
		if _, err := getJob(ctx, tx, id); err != nil {
			return nil, nil, err
		}
		return nil, nil, errors.Wrapf(errors.ErrNotDue, "job %d", id)
	}

	job, err := getJob(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}

	log := &Log{
		ID:      uuid.NewString(),
		JobID:   id,
		RunDate: *job.StartedOn,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO logs (id, job_id, run_date) VALUES (?, ?, ?)`,
		log.ID, log.JobID, formatTime(log.RunDate),
	); err != nil {
		return nil, nil, errors.Wrapf(err, "failed to create log for job %d", id)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, errors.Wrapf(err, "failed to commit claim of job %d", id)
	}

	s.logger.Debugw("Claimed job", logger.FieldJobID, id, logger.FieldLogID, log.ID)
	return job, log, nil
}

// FinishRun writes the run outcome to the log and the job in one transaction
func (s *SQLiteStore) FinishRun(ctx context.Context, job *Job, log *Log) error {
	if log.EndDate == nil {
		return errors.AssertionFailedf("log %s finalized without end date", log.ID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to begin finalizing job %d", job.ID)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE logs SET end_date = ?, stdout = ?, stderr = ?, success = ? WHERE id = ?`,
		formatTime(*log.EndDate), log.Stdout, log.Stderr, log.Success, log.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to finalize log %s", log.ID)
	}
	if err := expectRows(res, 1, "log %s", log.ID); err != nil {
		return err
	}

	var lastRunSuccessful interface{}
	if job.LastRunSuccessful != nil {
		lastRunSuccessful = *job.LastRunSuccessful
	}
	res, err = tx.ExecContext(ctx, `
		UPDATE jobs SET is_running = 0, started_on = NULL,
			last_run = ?, last_run_successful = ?, next_run = ?, updated_at = ?
		WHERE id = ?`,
		formatTimePtr(job.LastRun), lastRunSuccessful, formatTimePtr(job.NextRun),
		formatTime(s.now()), job.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update job %d after run", job.ID)
	}
	if err := expectRows(res, 1, "job %d", job.ID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "failed to commit run of job %d", job.ID)
	}

	job.IsRunning, job.StartedOn = false, nil
	return nil
}

// SetDisabled enables or disables jobs, returning how many exist
func (s *SQLiteStore) SetDisabled(ctx context.Context, ids []int64, disabled bool) (int64, error) {
	return s.updateMany(ctx, ids, `disabled = ?`, disabled)
}

// ResetJobs clears the running state of jobs an operator knows are dead
func (s *SQLiteStore) ResetJobs(ctx context.Context, ids []int64) (int64, error) {
	return s.updateMany(ctx, ids, `is_running = 0, started_on = NULL`)
}

// RequestAdhocRun queues a job for the next cycle regardless of its schedule
func (s *SQLiteStore) RequestAdhocRun(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET adhoc_run = 1, updated_at = ? WHERE id = ?`,
		formatTime(s.now()), id,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to queue job %d", id)
	}
	return expectRows(res, 1, "job %d", id)
}

// Vacuum compacts the database file
func (s *SQLiteStore) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return errors.Wrap(err, "failed to vacuum database")
	}
	return nil
}

func (s *SQLiteStore) updateMany(ctx context.Context, ids []int64, set string, setArgs ...interface{}) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := append([]interface{}{}, setArgs...)
	args = append(args, formatTime(s.now()))
	for _, id := range ids {
		args = append(args, id)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET `+set+`, updated_at = ? WHERE id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, errors.Wrap(err, "failed to update jobs")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to update jobs")
	}
	return n, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func queryJobs(ctx context.Context, q queryer, query string, args ...interface{}) ([]*Job, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query jobs")
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate jobs")
	}
	return jobs, nil
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var frequency string
	var nextRun, lastRun, startedOn sql.NullString
	var lastRunSuccessful sql.NullBool
	var createdAt, updatedAt string

	err := row.Scan(
		&job.ID, &job.Name, &job.Command, &job.ShellCommand, &job.Args,
		&job.RunInShell, &job.Atomic,
		&frequency, &job.Params, &nextRun, &lastRun, &lastRunSuccessful,
		&job.IsRunning, &startedOn, &job.Disabled, &job.AdhocRun,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Frequency = Frequency(frequency)
	if lastRunSuccessful.Valid {
		ok := lastRunSuccessful.Bool
		job.LastRunSuccessful = &ok
	}
	if job.NextRun, err = parseNullTime(nextRun); err != nil {
		return nil, err
	}
	if job.LastRun, err = parseNullTime(lastRun); err != nil {
		return nil, err
	}
	if job.StartedOn, err = parseNullTime(startedOn); err != nil {
		return nil, err
	}
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &job, nil
}

func expectRows(res sql.Result, want int64, format string, args ...interface{}) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if n < want {
		return errors.NewNotFoundError(format, args...)
	}
	return nil
}
