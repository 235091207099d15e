package jobfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/chronograph/schedule"
)

var fixedNow = func() time.Time { return time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC) }

func TestParse(t *testing.T) {
	data := []byte(`
[[job]]
name = "nightly backup"
shell_command = "tar czf /var/backups/srv.tgz /srv"
frequency = "daily"
next_run = "2024-01-02 02:00"

[[job]]
name = "prune logs"
command = "cleanup_logs"
args = "days=30"
frequency = "weekly"
params = "day_of_week=6"
atomic = false

[[job]]
name = "direct"
shell_command = "/usr/local/bin/report"
run_in_shell = false
frequency = "none"
disabled = true
`)

	jobs, err := Parse(data, Options{Location: time.UTC, Now: fixedNow})
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	backup := jobs[0]
	assert.Equal(t, "nightly backup", backup.Name)
	assert.True(t, backup.RunInShell)
	assert.True(t, backup.Atomic)
	assert.Equal(t, schedule.FrequencyDaily, backup.Frequency)
	assert.Equal(t, time.Date(2024, 1, 2, 2, 0, 0, 0, time.UTC), *backup.NextRun)

	prune := jobs[1]
	assert.Equal(t, schedule.KindManagement, prune.Kind())
	assert.False(t, prune.RunInShell)
	assert.False(t, prune.Atomic)
	// no next_run: first Sunday slot after now, 2024-01-07 10:30
	assert.Equal(t, time.Date(2024, 1, 7, 10, 30, 0, 0, time.UTC), *prune.NextRun)

	direct := jobs[2]
	assert.False(t, direct.RunInShell)
	assert.True(t, direct.Disabled)
	assert.Equal(t, schedule.FrequencyOnce, direct.Frequency)
	assert.Nil(t, direct.NextRun)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"syntax", `[[job]` + "\n", "failed to parse job file"},
		{"unknown key", "[[job]]\nname = \"a\"\nshell_command = \"true\"\nfrequency = \"daily\"\nschedule = \"x\"\n", "unknown keys: job.schedule"},
		{"duplicate", "[[job]]\nname = \"a\"\nshell_command = \"true\"\nfrequency = \"daily\"\n[[job]]\nname = \"a\"\nshell_command = \"true\"\nfrequency = \"daily\"\n", `duplicate name "a"`},
		{"bad frequency", "[[job]]\nname = \"a\"\nshell_command = \"true\"\nfrequency = \"often\"\n", "unknown frequency"},
		{"bad params", "[[job]]\nname = \"a\"\nshell_command = \"true\"\nfrequency = \"daily\"\nparams = \"day_of_month=3\"\n", "day_of_month only applies"},
		{"bad time", "[[job]]\nname = \"a\"\nshell_command = \"true\"\nfrequency = \"daily\"\nnext_run = \"tomorrow\"\n", "cannot parse time"},
		{"no command", "[[job]]\nname = \"a\"\nfrequency = \"daily\"\n", "neither command nor shell_command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), Options{Now: fixedNow})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseLegacyArgs(t *testing.T) {
	data := []byte(`
[[job]]
name = "legacy"
shell_command = "echo"
args = 'dir=C:\temp title=say"hi"'
frequency = "hourly"
`)

	jobs, err := Parse(data, Options{LegacyArgs: true, Now: fixedNow})
	require.NoError(t, err)

	args, ambiguous := schedule.SplitArgs(jobs[0].Args)
	assert.False(t, ambiguous)
	assert.Equal(t, []string{`dir=C:\temp`, `title=say"hi"`}, args)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[job]]\nname = \"x\"\nshell_command = \"true\"\nfrequency = \"minutes\"\n"), 0o644))

	jobs, err := Load(path, Options{Now: fixedNow})
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"), Options{})
	assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	got, err := ParseTime("2024-01-02 09:00", tokyo)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseTime("2024-01-02T09:00:00+01:00", tokyo)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC), got)

	got, err = ParseTime("2024-01-02", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), got)
}
