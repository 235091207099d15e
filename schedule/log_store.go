package schedule

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/teranos/chronograph/errors"
	"github.com/teranos/chronograph/logger"
)

const logColumns = `id, job_id, run_date, end_date, stdout, stderr, success`

// GetLog retrieves a log by ID
func (s *SQLiteStore) GetLog(ctx context.Context, id string) (*Log, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+logColumns+` FROM logs WHERE id = ?`, id)
	log, err := scanLog(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("log %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get log %s", id)
	}
	return log, nil
}

// ListLogs returns logs newest first
func (s *SQLiteStore) ListLogs(ctx context.Context, filter LogFilter) ([]*Log, error) {
	var where []string
	var args []interface{}
	if filter.JobID != 0 {
		where = append(where, `job_id = ?`)
		args = append(args, filter.JobID)
	}
	if filter.FailedOnly {
		where = append(where, `end_date IS NOT NULL AND success = 0`)
	}

	query := `SELECT ` + logColumns + ` FROM logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY run_date DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query logs")
	}
	defer rows.Close()

	var logs []*Log
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan log")
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate logs")
	}
	return logs, nil
}

// LatestLog returns the most recent finished log of a job
func (s *SQLiteStore) LatestLog(ctx context.Context, jobID int64) (*Log, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+logColumns+` FROM logs
		WHERE job_id = ? AND end_date IS NOT NULL
		ORDER BY run_date DESC
		LIMIT 1`, jobID)
	log, err := scanLog(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("finished log for job %d", jobID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get latest log of job %d", jobID)
	}
	return log, nil
}

// DeleteLogsBefore removes finished logs whose run started before cutoff.
// Unfinished logs are kept as evidence of crashed runs.
func (s *SQLiteStore) DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM logs WHERE run_date < ? AND end_date IS NOT NULL`,
		formatTime(cutoff),
	)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete old logs")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to count deleted logs")
	}
	if n > 0 {
		s.logger.Infow("Deleted old logs", logger.FieldCount, n, "cutoff", formatTime(cutoff))
	}
	return n, nil
}

func scanLog(row rowScanner) (*Log, error) {
	var log Log
	var runDate string
	var endDate sql.NullString

	if err := row.Scan(&log.ID, &log.JobID, &runDate, &endDate, &log.Stdout, &log.Stderr, &log.Success); err != nil {
		return nil, err
	}

	var err error
	if log.RunDate, err = parseTime(runDate); err != nil {
		return nil, err
	}
	if log.EndDate, err = parseNullTime(endDate); err != nil {
		return nil, err
	}
	return &log, nil
}
