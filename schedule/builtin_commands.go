package schedule

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/teranos/chronograph/errors"
)

// RegisterBuiltinCommands adds the housekeeping commands jobs can schedule:
//
//	cleanup_logs [days=N]   delete finished logs older than N days
//	vacuum                  compact the database file
//
// defaultRetentionDays applies when cleanup_logs gets no days option.
func RegisterBuiltinCommands(r *CommandRegistry, store Store, defaultRetentionDays int, now func() time.Time) {
	if now == nil {
		now = time.Now
	}

	r.Register(CommandFunc{
		CommandName: "cleanup_logs",
		Usage:       "cleanup_logs [days=N]: delete finished logs older than N days",
		Fn: func(ctx context.Context, inv *Invocation) error {
			days := defaultRetentionDays
			_, opts := inv.Options()
			if v, ok := opts["days"]; ok {
				n, err := strconv.Atoi(v)
				if err != nil || n < 0 {
					return errors.Newf("days must be a non-negative integer, got %q", v)
				}
				days = n
			}
			if days <= 0 {
				return errors.New("no retention period: pass days=N or set cron.log_retention_days")
			}

			cutoff := now().AddDate(0, 0, -days)
			n, err := store.DeleteLogsBefore(ctx, cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(inv.Stdout, "Deleted %d log(s) older than %d day(s).\n", n, days)
			return nil
		},
	})

	r.Register(CommandFunc{
		CommandName: "vacuum",
		Usage:       "vacuum: compact the database file",
		Fn: func(ctx context.Context, inv *Invocation) error {
			if err := store.Vacuum(ctx); err != nil {
				return err
			}
			fmt.Fprintln(inv.Stdout, "Database vacuumed.")
			return nil
		},
	})
}
