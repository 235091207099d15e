package commands

import (
	"io"
	"strconv"
	"time"

	"github.com/pterm/pterm"

	"github.com/teranos/chronograph/errors"
)

const displayTimeLayout = "2006-01-02 15:04:05 MST"

// formatWhen renders an optional timestamp in loc, or "-"
func formatWhen(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "-"
	}
	return t.In(loc).Format(displayTimeLayout)
}

func formatResult(ok *bool) string {
	switch {
	case ok == nil:
		return "-"
	case *ok:
		return "ok"
	default:
		return "failed"
	}
}

// renderTable prints rows under a header row
func renderTable(w io.Writer, header []string, rows [][]string) error {
	data := pterm.TableData{header}
	data = append(data, rows...)
	return pterm.DefaultTable.
		WithHasHeader().
		WithWriter(w).
		WithData(data).
		Render()
}

// parseIDs reads job ids from positional arguments
func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, errors.Newf("invalid job id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
