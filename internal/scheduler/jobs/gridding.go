package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/aodgrid/internal/manifest"
	"github.com/wonny/aodgrid/internal/pipeline"
	"github.com/wonny/aodgrid/internal/runconfig"
	"github.com/wonny/aodgrid/pkg/logger"
)

// DayProcessor grids one day
type DayProcessor interface {
	ProcessDay(ctx context.Context, date time.Time) (*pipeline.DayResult, error)
}

// DailyGriddingJob grids the most recent day the archive is expected to hold
// ⭐ SSOT: 일별 격자화 스케줄은 이 Job에서만
type DailyGriddingJob struct {
	processor DayProcessor
	schedule  runconfig.Schedule
	logger    *logger.Logger
	now       func() time.Time
}

// NewDailyGriddingJob creates the daily job
func NewDailyGriddingJob(p DayProcessor, schedule runconfig.Schedule, log *logger.Logger) *DailyGriddingJob {
	return &DailyGriddingJob{
		processor: p,
		schedule:  schedule,
		logger:    log,
		now:       time.Now,
	}
}

// Name returns the job name
func (j *DailyGriddingJob) Name() string {
	return "daily_gridding"
}

// Schedule returns the configured cron expression
func (j *DailyGriddingJob) Schedule() string {
	return j.schedule.Cron
}

// TargetDay is today (UTC) minus the archive lag
func (j *DailyGriddingJob) TargetDay() time.Time {
	today := j.now().UTC().Truncate(24 * time.Hour)
	return today.AddDate(0, 0, -j.schedule.LagDays)
}

// Run grids the target day. A day held by another process is not an error.
func (j *DailyGriddingJob) Run(ctx context.Context) error {
	day := j.TargetDay()
	log := j.logger.WithField("date", day.Format(runconfig.DateLayout))
	log.Info("Starting scheduled gridding")

	res, err := j.processor.ProcessDay(ctx, day)
	if errors.Is(err, pipeline.ErrDayLocked) {
		log.Warn("Day locked by another process, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("grid %s: %w", day.Format(runconfig.DateLayout), err)
	}
	if res.Failed() {
		return fmt.Errorf("grid %s: every product failed", day.Format(runconfig.DateLayout))
	}

	log.WithField("outputs", len(res.Outputs)).Info("Scheduled gridding completed")
	return nil
}

// GapFillJob re-grids recent days whose run history is missing or failed
type GapFillJob struct {
	processor DayProcessor
	store     manifest.Store
	products  []string
	window    int // days to look back, ending at the lag boundary
	lagDays   int
	logger    *logger.Logger
	now       func() time.Time
}

// NewGapFillJob creates the gap fill job
func NewGapFillJob(p DayProcessor, store manifest.Store, cfg *runconfig.Config, window int, log *logger.Logger) *GapFillJob {
	products := make([]string, len(cfg.Products))
	for i, pc := range cfg.Products {
		products[i] = pc.Name
	}
	return &GapFillJob{
		processor: p,
		store:     store,
		products:  products,
		window:    window,
		lagDays:   cfg.Schedule.LagDays,
		logger:    log,
		now:       time.Now,
	}
}

// Name returns the job name
func (j *GapFillJob) Name() string {
	return "gap_fill"
}

// Schedule returns the cron schedule (every 6 hours, off the hour)
func (j *GapFillJob) Schedule() string {
	return "30 */6 * * *"
}

// Gaps returns days in the window where some product has no record or a failed one
func (j *GapFillJob) Gaps(ctx context.Context) ([]time.Time, error) {
	end := j.now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -j.lagDays)
	start := end.AddDate(0, 0, -(j.window - 1))

	records, err := j.store.List(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list run history: %w", err)
	}

	seen := make(map[string]manifest.Status, len(records))
	for _, r := range records {
		seen[r.RunDate.Format(runconfig.DateLayout)+"/"+r.Product] = r.Status
	}

	var gaps []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		for _, product := range j.products {
			status, ok := seen[d.Format(runconfig.DateLayout)+"/"+product]
			if !ok || status == manifest.StatusFailed || status == manifest.StatusRunning {
				gaps = append(gaps, d)
				break
			}
		}
	}
	return gaps, nil
}

// Run re-grids every gap. Days are independent; the job fails if any day does.
func (j *GapFillJob) Run(ctx context.Context) error {
	gaps, err := j.Gaps(ctx)
	if err != nil {
		return err
	}
	if len(gaps) == 0 {
		j.logger.Debug("No gaps in run history")
		return nil
	}

	j.logger.WithField("days", len(gaps)).Info("Filling gaps in run history")

	var failed int
	for _, day := range gaps {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res, err := j.processor.ProcessDay(ctx, day)
		switch {
		case errors.Is(err, pipeline.ErrDayLocked):
			continue
		case err != nil || res.Failed():
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("gap fill: %d of %d days failed", failed, len(gaps))
	}
	return nil
}
