package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wonny/aodgrid/internal/metrics"
	"github.com/wonny/aodgrid/internal/runconfig"
)

// RangeSummary reports a date-range run
type RangeSummary struct {
	Days        int
	Processed   int // days that did not fail
	Failed      int
	Skipped     int // locked by another process or cancelled before start
	SuccessRate float64
	Elapsed     time.Duration
	Results     []*DayResult // ordered by date
}

// RunRange processes days in parallel with a fixed worker pool.
// Days are independent: one failing day never stops the others. When ctx is
// cancelled no new day starts and ctx.Err() is returned with the partial summary.
func (p *Processor) RunRange(ctx context.Context, days []time.Time, workers int) (*RangeSummary, error) {
	start := p.now()
	if workers <= 0 {
		workers = 1
	}
	if workers > len(days) {
		workers = len(days)
	}

	p.logger.WithFields(map[string]interface{}{
		"days":    len(days),
		"workers": workers,
	}).Info("Starting range processing")

	dayCh := make(chan time.Time, len(days))
	resultCh := make(chan *DayResult, len(days))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.dayWorker(ctx, workerID, dayCh, resultCh)
		}(i)
	}

	for _, d := range days {
		dayCh <- d
	}
	close(dayCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	summary := &RangeSummary{Days: len(days)}
	for res := range resultCh {
		summary.Results = append(summary.Results, res)
		switch {
		case errors.Is(res.Err, ErrDayLocked) || (ctx.Err() != nil && errors.Is(res.Err, ctx.Err())):
			summary.Skipped++
		case res.Failed():
			summary.Failed++
		default:
			summary.Processed++
		}
	}
	summary.Skipped += len(days) - len(summary.Results)

	sort.Slice(summary.Results, func(i, j int) bool {
		return summary.Results[i].Date.Before(summary.Results[j].Date)
	})
	if len(days) > 0 {
		summary.SuccessRate = float64(summary.Processed) / float64(len(days))
	}
	summary.Elapsed = p.now().Sub(start)

	if err := p.deps.Metrics.PublishRange(context.WithoutCancel(ctx), metrics.RangeMetrics{
		Processed: summary.Processed,
		Failed:    summary.Failed,
		Elapsed:   summary.Elapsed,
	}); err != nil {
		p.logger.WithError(err).Warn("Failed to publish range metrics")
	}

	p.deps.Events.Publish(Event{
		Type:  EventRangeDone,
		Done:  summary.Processed,
		Total: summary.Days,
		Time:  p.now(),
	})

	p.logger.WithFields(map[string]interface{}{
		"processed":    summary.Processed,
		"failed":       summary.Failed,
		"skipped":      summary.Skipped,
		"success_rate": summary.SuccessRate,
		"elapsed":      summary.Elapsed,
	}).Info("Range processing completed")

	return summary, ctx.Err()
}

// dayWorker processes days until the channel is drained or ctx is cancelled
func (p *Processor) dayWorker(ctx context.Context, workerID int, dayCh <-chan time.Time, resultCh chan<- *DayResult) {
	for day := range dayCh {
		if ctx.Err() != nil {
			return
		}

		res, err := p.ProcessDay(ctx, day)
		if err != nil {
			p.logger.WithError(err).WithFields(map[string]interface{}{
				"worker": workerID,
				"date":   day.Format(runconfig.DateLayout),
			}).Error("Day failed")
		}
		resultCh <- res
	}
}
