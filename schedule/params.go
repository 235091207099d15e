package schedule

import (
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/robfig/cron/v3"

	"github.com/teranos/chronograph/errors"
)

// Params holds the calculator-specific settings of a job's recurrence,
// written as shell-style key=value tokens:
//
//	interval=2 day_of_week=2
//	expr="*/15 9-17 * * mon-fri"
type Params struct {
	// Units between runs (default 1)
	Interval int
	// Weekly only. Set when HasDayOfWeek is true.
	DayOfWeek    time.Weekday
	HasDayOfWeek bool
	// Monthly, quarterly and yearly only (1-31, clamped to the month's length)
	DayOfMonth int
	// Cron only: five-field expression or descriptor such as @hourly
	Expr string
}

// Day numbering follows the Monday-first convention: 0 = Monday ... 6 = Sunday.
var weekdayNames = map[string]time.Weekday{
	"mo": time.Monday, "mon": time.Monday, "monday": time.Monday,
	"tu": time.Tuesday, "tue": time.Tuesday, "tuesday": time.Tuesday,
	"we": time.Wednesday, "wed": time.Wednesday, "wednesday": time.Wednesday,
	"th": time.Thursday, "thu": time.Thursday, "thursday": time.Thursday,
	"fr": time.Friday, "fri": time.Friday, "friday": time.Friday,
	"sa": time.Saturday, "sat": time.Saturday, "saturday": time.Saturday,
	"su": time.Sunday, "sun": time.Sunday, "sunday": time.Sunday,
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseParams parses and validates params for the given frequency.
// Tokens may be separated by whitespace or semicolons, and use either
// key=value or key:value.
func ParseParams(freq Frequency, raw string) (Params, error) {
	p := Params{Interval: 1}

	tokens, err := shellquote.Split(strings.ReplaceAll(raw, ";", " "))
	if err != nil {
		return p, errors.NewInvalidJobError("params %q: %v", raw, err)
	}

	seen := map[string]bool{}
	for _, tok := range tokens {
		key, value, ok := cutParam(tok)
		if !ok {
			return p, errors.NewInvalidJobError("params: %q is not key=value", tok)
		}
		if seen[key] {
			return p, errors.NewInvalidJobError("params: %s given twice", key)
		}
		seen[key] = true

		switch key {
		case "interval":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return p, errors.NewInvalidJobError("params: interval must be a positive integer, got %q", value)
			}
			p.Interval = n
		case "day_of_week", "weekday", "byweekday":
			wd, err := parseWeekday(value)
			if err != nil {
				return p, err
			}
			p.DayOfWeek, p.HasDayOfWeek = wd, true
		case "day_of_month", "bymonthday":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 || n > 31 {
				return p, errors.NewInvalidJobError("params: day_of_month must be 1-31, got %q", value)
			}
			p.DayOfMonth = n
		case "expr":
			p.Expr = value
		default:
			return p, errors.NewInvalidJobError("params: unknown key %q", key)
		}
	}

	return p, p.check(freq)
}

// check rejects params that mean nothing for freq
func (p Params) check(freq Frequency) error {
	if p.HasDayOfWeek && freq != FrequencyWeekly {
		return errors.NewInvalidJobError("params: day_of_week only applies to weekly jobs, not %s", freq)
	}
	if p.DayOfMonth != 0 && freq.calendarMonths() == 0 {
		return errors.NewInvalidJobError("params: day_of_month only applies to monthly, quarterly and yearly jobs, not %s", freq)
	}
	if freq == FrequencyCron {
		if p.Expr == "" {
			return errors.NewInvalidJobError("params: cron jobs need expr=\"<minute> <hour> <dom> <month> <dow>\"")
		}
		if p.Interval != 1 {
			return errors.NewInvalidJobError("params: interval does not apply to cron jobs")
		}
		if _, err := cronParser.Parse(p.Expr); err != nil {
			return errors.NewInvalidJobError("params: bad cron expression %q: %v", p.Expr, err)
		}
	} else if p.Expr != "" {
		return errors.NewInvalidJobError("params: expr only applies to cron jobs, not %s", freq)
	}
	return nil
}

// String renders params in canonical form
func (p Params) String() string {
	var parts []string
	if p.Interval > 1 {
		parts = append(parts, "interval="+strconv.Itoa(p.Interval))
	}
	if p.HasDayOfWeek {
		parts = append(parts, "day_of_week="+strconv.Itoa(mondayFirst(p.DayOfWeek)))
	}
	if p.DayOfMonth != 0 {
		parts = append(parts, "day_of_month="+strconv.Itoa(p.DayOfMonth))
	}
	if p.Expr != "" {
		parts = append(parts, shellquote.Join("expr="+p.Expr))
	}
	return strings.Join(parts, " ")
}

func cutParam(tok string) (key, value string, ok bool) {
	i := strings.IndexAny(tok, "=:")
	if i <= 0 {
		return "", "", false
	}
	return strings.ToLower(strings.TrimSpace(tok[:i])), strings.TrimSpace(tok[i+1:]), true
}

func parseWeekday(value string) (time.Weekday, error) {
	if n, err := strconv.Atoi(value); err == nil {
		if n < 0 || n > 6 {
			return 0, errors.NewInvalidJobError("params: day_of_week must be 0 (Monday) to 6 (Sunday), got %d", n)
		}
		return time.Weekday((n + 1) % 7), nil
	}
	if wd, ok := weekdayNames[strings.ToLower(value)]; ok {
		return wd, nil
	}
	return 0, errors.NewInvalidJobError("params: unknown day_of_week %q", value)
}

// mondayFirst converts Go's Sunday-first weekday to Monday=0 numbering
func mondayFirst(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}
