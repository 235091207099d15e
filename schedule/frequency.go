package schedule

import (
	"strings"

	"github.com/teranos/chronograph/errors"
)

// Frequency names the recurrence unit of a job
type Frequency string

const (
	FrequencyOnce      Frequency = "once"
	FrequencyMinutes   Frequency = "minutes"
	FrequencyHourly    Frequency = "hourly"
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
	FrequencyCron      Frequency = "cron"
)

// Frequencies lists every accepted frequency in display order
var Frequencies = []Frequency{
	FrequencyOnce,
	FrequencyMinutes,
	FrequencyHourly,
	FrequencyDaily,
	FrequencyWeekly,
	FrequencyMonthly,
	FrequencyQuarterly,
	FrequencyYearly,
	FrequencyCron,
}

// ParseFrequency accepts any case; "none" is an alias for once.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if f == "none" {
		return FrequencyOnce, nil
	}
	for _, known := range Frequencies {
		if f == known {
			return f, nil
		}
	}
	return "", errors.WithHintf(
		errors.NewInvalidJobError("unknown frequency %q", s),
		"use one of: %s", frequencyList(),
	)
}

// IsOnce reports whether the job has no recurrence
func (f Frequency) IsOnce() bool {
	return f == FrequencyOnce || f == "none"
}

// calendarMonths is the month step of one unit, or 0 for non-month units
func (f Frequency) calendarMonths() int {
	switch f {
	case FrequencyMonthly:
		return 1
	case FrequencyQuarterly:
		return 3
	case FrequencyYearly:
		return 12
	}
	return 0
}

func frequencyList() string {
	names := make([]string, len(Frequencies))
	for i, f := range Frequencies {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
