package schedule

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserve(t *testing.T) {
	m := NewMetrics()
	started := at(2024, 1, 1, 0, 0)
	m.Observe(&CycleReport{
		Started:  started,
		Finished: started.Add(90 * time.Second),
		Stuck:    []*Job{{ID: 1}},
		Due:      4,
		Runs: []*Log{
			{Success: true, RunDate: started, EndDate: ptrTime(started.Add(time.Second))},
			{Success: false},
		},
		Skipped: 1,
		Errors:  1,
	})

	path := filepath.Join(t.TempDir(), "chrono.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "chrono_jobs_due 4")
	assert.Contains(t, text, "chrono_stuck_jobs_reset_total 1")
	assert.Contains(t, text, "chrono_jobs_skipped_total 1")
	assert.Contains(t, text, `chrono_job_runs_total{outcome="error"} 1`)
	assert.Contains(t, text, "chrono_job_duration_seconds_count 1")
	assert.Contains(t, text, "chrono_cycle_duration_seconds 90")
}

func TestMetricsNilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.Observe(&CycleReport{}) })
}

func TestMetricsTextfileError(t *testing.T) {
	m := NewMetrics()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "chrono.prom"))
	assert.Error(t, err)
}
