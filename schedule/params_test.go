package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/chronograph/errors"
)

func TestParseParams(t *testing.T) {
	p, err := ParseParams(FrequencyWeekly, "interval=2 day_of_week=2")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Interval)
	assert.True(t, p.HasDayOfWeek)
	assert.Equal(t, time.Wednesday, p.DayOfWeek)

	p, err = ParseParams(FrequencyMonthly, "interval:3; day_of_month=31")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Interval)
	assert.Equal(t, 31, p.DayOfMonth)

	p, err = ParseParams(FrequencyWeekly, "weekday=Sunday")
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, p.DayOfWeek)

	p, err = ParseParams(FrequencyCron, `expr="0 9,17 * * mon-fri"`)
	require.NoError(t, err)
	assert.Equal(t, "0 9,17 * * mon-fri", p.Expr)

	p, err = ParseParams(FrequencyDaily, "")
	require.NoError(t, err)
	assert.Equal(t, Params{Interval: 1}, p)
}

func TestParseParamsRejects(t *testing.T) {
	tests := []struct {
		name      string
		frequency Frequency
		raw       string
	}{
		{"not key value", FrequencyDaily, "interval"},
		{"unknown key", FrequencyDaily, "every=2"},
		{"duplicate key", FrequencyDaily, "interval=2 interval=3"},
		{"zero interval", FrequencyHourly, "interval=0"},
		{"weekday on daily", FrequencyDaily, "day_of_week=1"},
		{"weekday out of range", FrequencyWeekly, "day_of_week=7"},
		{"unknown weekday", FrequencyWeekly, "day_of_week=someday"},
		{"day of month on weekly", FrequencyWeekly, "day_of_month=3"},
		{"day of month out of range", FrequencyMonthly, "day_of_month=32"},
		{"expr on daily", FrequencyDaily, "expr=@daily"},
		{"cron without expr", FrequencyCron, ""},
		{"cron with interval", FrequencyCron, "expr=@daily interval=2"},
		{"bad cron expr", FrequencyCron, `expr="61 * * * *"`},
		{"unterminated quote", FrequencyCron, `expr="0 9 * * *`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseParams(tt.frequency, tt.raw)
			require.Error(t, err)
			assert.True(t, errors.IsInvalidJobError(err), "got %v", err)
		})
	}
}

func TestParamsString(t *testing.T) {
	p, err := ParseParams(FrequencyWeekly, "weekday=fri;interval=2")
	require.NoError(t, err)
	assert.Equal(t, "interval=2 day_of_week=4", p.String())

	again, err := ParseParams(FrequencyWeekly, p.String())
	require.NoError(t, err)
	assert.Equal(t, p, again)

	p, err = ParseParams(FrequencyCron, `expr="*/5 * * * *"`)
	require.NoError(t, err)
	again, err = ParseParams(FrequencyCron, p.String())
	require.NoError(t, err)
	assert.Equal(t, p.Expr, again.Expr)
}
