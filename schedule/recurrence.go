package schedule

import (
	"time"

	"github.com/robfig/cron/v3"
)

// Recurrence is a validated frequency together with its params.
// Calendar arithmetic happens in the location of the times passed in,
// so callers convert to the configured zone first.
type Recurrence struct {
	Frequency Frequency
	Params    Params

	cron cron.Schedule
}

// ParseRecurrence validates a frequency/params pair as stored on a job
func ParseRecurrence(frequency, params string) (Recurrence, error) {
	freq, err := ParseFrequency(frequency)
	if err != nil {
		return Recurrence{}, err
	}
	p, err := ParseParams(freq, params)
	if err != nil {
		return Recurrence{}, err
	}

	r := Recurrence{Frequency: freq, Params: p}
	if freq == FrequencyCron {
		// check() already parsed it once
		r.cron, _ = cronParser.Parse(p.Expr)
	}
	return r, nil
}

// NextRun returns the run that follows ref by one recurrence step, or nil
// for jobs that run once. For every recurring frequency the result is
// strictly after ref.
func NextRun(frequency Frequency, params string, ref time.Time) (*time.Time, error) {
	r, err := ParseRecurrence(string(frequency), params)
	if err != nil {
		return nil, err
	}
	return r.Next(ref), nil
}

// NextRunAfter returns the earliest run of the series anchored at anchor
// that is strictly after after. A job that was due at anchor and ran late
// keeps its wall-clock slot instead of drifting to the time it ran.
func NextRunAfter(frequency Frequency, params string, anchor, after time.Time) (*time.Time, error) {
	r, err := ParseRecurrence(string(frequency), params)
	if err != nil {
		return nil, err
	}
	return r.NextAfter(anchor, after), nil
}

// Next is NextRun for an already parsed recurrence
func (r Recurrence) Next(ref time.Time) *time.Time {
	return r.NextAfter(ref, ref)
}

// NextAfter is NextRunAfter for an already parsed recurrence
func (r Recurrence) NextAfter(anchor, after time.Time) *time.Time {
	if r.Frequency.IsOnce() {
		return nil
	}

	if r.Frequency == FrequencyCron {
		if r.cron == nil {
			sched, err := cronParser.Parse(r.Params.Expr)
			if err != nil {
				return nil
			}
			r.cron = sched
		}
		next := r.cron.Next(after.In(anchor.Location()))
		if next.IsZero() {
			// the expression never fires again
			return nil
		}
		return &next
	}

	occ := r.occurrence(anchor)
	k := r.estimate(anchor, after)
	for k > 0 && occ(k-1).After(after) {
		k--
	}
	for !occ(k).After(after) {
		k++
	}
	next := occ(k)
	return &next
}

// Upcoming lists the next count runs of the series anchored at ref
func (r Recurrence) Upcoming(ref time.Time, count int) []time.Time {
	var runs []time.Time
	for cur := ref; len(runs) < count; {
		next := r.NextAfter(ref, cur)
		if next == nil {
			break
		}
		runs = append(runs, *next)
		cur = *next
	}
	return runs
}

// occurrence returns the k-th run of the series anchored at anchor
func (r Recurrence) occurrence(anchor time.Time) func(k int) time.Time {
	n := r.Params.Interval
	if n < 1 {
		n = 1
	}
	loc := anchor.Location()
	y, m, d := anchor.Date()
	hh, mm, ss := anchor.Clock()
	ns := anchor.Nanosecond()

	switch r.Frequency {
	case FrequencyMinutes:
		return func(k int) time.Time { return anchor.Add(time.Duration(k*n) * time.Minute) }
	case FrequencyHourly:
		return func(k int) time.Time { return anchor.Add(time.Duration(k*n) * time.Hour) }
	case FrequencyDaily:
		return func(k int) time.Time { return time.Date(y, m, d+k*n, hh, mm, ss, ns, loc) }
	case FrequencyWeekly:
		if r.Params.HasDayOfWeek {
			d += (int(r.Params.DayOfWeek) - int(anchor.Weekday()) + 7) % 7
		}
		return func(k int) time.Time { return time.Date(y, m, d+7*k*n, hh, mm, ss, ns, loc) }
	}

	step := n * r.Frequency.calendarMonths()
	dom := d
	if r.Params.DayOfMonth != 0 {
		dom = r.Params.DayOfMonth
	}
	return func(k int) time.Time {
		total := int(m) - 1 + k*step
		year, month := y+total/12, time.Month(total%12+1)
		day := dom
		if last := daysIn(year, month, loc); day > last {
			day = last
		}
		return time.Date(year, month, day, hh, mm, ss, ns, loc)
	}
}

// estimate guesses the index of the first run after after; NextAfter
// corrects it in either direction.
func (r Recurrence) estimate(anchor, after time.Time) int {
	elapsed := after.Sub(anchor)
	if elapsed <= 0 {
		return 0
	}

	n := r.Params.Interval
	if n < 1 {
		n = 1
	}
	var unit time.Duration
	switch r.Frequency {
	case FrequencyMinutes:
		unit = time.Minute
	case FrequencyHourly:
		unit = time.Hour
	case FrequencyDaily:
		unit = 24 * time.Hour
	case FrequencyWeekly:
		unit = 7 * 24 * time.Hour
	default:
		// average Gregorian month
		unit = time.Duration(r.Frequency.calendarMonths()) * 2629746 * time.Second
	}

	k := int(elapsed/(unit*time.Duration(n))) - 1
	if k < 0 {
		return 0
	}
	return k
}

// daysIn returns the number of days in month of year
func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
