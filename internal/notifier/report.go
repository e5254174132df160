package notifier

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/suspectuso/lookup-bot/internal/storage"
)

// StatsSource provides the aggregate figures for the report
type StatsSource interface {
	Stats(ctx context.Context) (*storage.Stats, error)
}

// Reporter sends the stats summary to admins on a cron schedule
type Reporter struct {
	cron     *cron.Cron
	stats    StatsSource
	notify   *Notifier
	adminIDs []int64
	schedule string
	log      *slog.Logger
}

// NewReporter creates a reporter evaluating schedule in loc
func NewReporter(stats StatsSource, notify *Notifier, adminIDs map[int64]bool, schedule string, loc *time.Location, log *slog.Logger) *Reporter {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger)),
	)

	ids := make([]int64, 0, len(adminIDs))
	for id, ok := range adminIDs {
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return &Reporter{
		cron:     c,
		stats:    stats,
		notify:   notify,
		adminIDs: ids,
		schedule: schedule,
		log:      log,
	}
}

// Start registers the report job and runs the scheduler until ctx is done
func (r *Reporter) Start(ctx context.Context) {
	if len(r.adminIDs) == 0 || r.schedule == "" {
		r.log.Info("daily report disabled: no ADMIN_IDS or REPORT_SCHEDULE")
		return
	}

	if _, err := r.cron.AddFunc(r.schedule, func() { r.send(ctx) }); err != nil {
		r.log.Error("schedule daily report", "schedule", r.schedule, "error", err)
		return
	}
	r.log.Info("scheduled daily report", "schedule", r.schedule, "admins", len(r.adminIDs))

	r.cron.Start()
	<-ctx.Done()
	<-r.cron.Stop().Done()
}

func (r *Reporter) send(ctx context.Context) {
	st, err := r.stats.Stats(ctx)
	if err != nil {
		r.log.Error("daily report stats", "error", err)
		return
	}
	r.notify.DailyReport(ctx, r.adminIDs, st)
}
