package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/aodgrid/pkg/logger"
)

// ErrJobNotFound is returned for unknown job names
var ErrJobNotFound = errors.New("job not found")

// Options tunes retries
type Options struct {
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultOptions retries a failed run twice, ten minutes apart.
// Archive outages usually clear within that window.
func DefaultOptions() Options {
	return Options{MaxRetries: 2, RetryDelay: 10 * time.Minute}
}

// Scheduler manages scheduled jobs
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron    *cron.Cron
	logger  *logger.Logger
	opts    Options
	jobs    map[string]Job
	entries map[string]cron.EntryID
	history map[string]*JobHistory
	running map[string]bool
	mu      sync.RWMutex

	// base context for cron-triggered runs, cancelled by Stop
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. Schedules are evaluated in UTC.
func New(log *logger.Logger, opts Options) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		logger:  log.WithField("module", "scheduler"),
		opts:    opts,
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
		history: make(map[string]*JobHistory),
		running: make(map[string]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// AddJob adds a job to the scheduler
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobName := job.Name()
	if _, exists := s.jobs[jobName]; exists {
		return fmt.Errorf("job %s already exists", jobName)
	}

	id, err := s.cron.AddFunc(job.Schedule(), func() {
		s.trigger(job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", jobName, err)
	}

	s.jobs[jobName] = job
	s.entries[jobName] = id
	s.history[jobName] = &JobHistory{}

	s.logger.WithFields(map[string]interface{}{
		"job":      jobName,
		"schedule": job.Schedule(),
	}).Info("Job added to scheduler")

	return nil
}

// RemoveJob removes a job and its cron entry
func (s *Scheduler) RemoveJob(jobName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[jobName]; !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}

	s.cron.Remove(s.entries[jobName])
	delete(s.jobs, jobName)
	delete(s.entries, jobName)
	s.logger.WithField("job", jobName).Info("Job removed from scheduler")

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop stops the cron loop, cancels running jobs and waits for them
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	cronCtx := s.cron.Stop()
	s.cancel()
	<-cronCtx.Done()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// Trigger runs a job now in the background (API)
func (s *Scheduler) Trigger(jobName string) error {
	job, err := s.job(jobName)
	if err != nil {
		return err
	}
	s.trigger(job)
	return nil
}

// RunNow runs a job synchronously and returns its result (CLI)
func (s *Scheduler) RunNow(ctx context.Context, jobName string) (JobResult, error) {
	job, err := s.job(jobName)
	if err != nil {
		return JobResult{}, err
	}
	return s.runJob(ctx, job), nil
}

func (s *Scheduler) job(jobName string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, exists := s.jobs[jobName]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	return job, nil
}

// trigger starts a background run unless one is already in flight
func (s *Scheduler) trigger(job Job) {
	s.mu.Lock()
	if s.running[job.Name()] {
		s.mu.Unlock()
		s.logger.WithField("job", job.Name()).Warn("Previous run still in progress, skipping")
		return
	}
	s.running[job.Name()] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, job.Name())
			s.mu.Unlock()
		}()
		s.runJob(s.ctx, job)
	}()
}

// runJob executes a job with retry logic and records the result
func (s *Scheduler) runJob(ctx context.Context, job Job) JobResult {
	jobName := job.Name()
	startTime := time.Now()

	s.logger.WithField("job", jobName).Info("Job started")

	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		attempts++
		lastErr = job.Run(ctx)
		if lastErr == nil || ctx.Err() != nil {
			break
		}

		s.logger.WithFields(map[string]interface{}{
			"job":     jobName,
			"attempt": attempt + 1,
			"error":   lastErr.Error(),
		}).Warn("Job execution failed, retrying")

		if attempt < s.opts.MaxRetries {
			if err := sleepContext(ctx, s.opts.RetryDelay); err != nil {
				break
			}
		}
	}

	endTime := time.Now()
	result := JobResult{
		JobName:   jobName,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  endTime.Sub(startTime),
		Attempts:  attempts,
		Success:   lastErr == nil,
	}
	if lastErr != nil {
		result.Error = lastErr.Error()
	}

	s.mu.Lock()
	if history, exists := s.history[jobName]; exists {
		history.AddResult(result)
	}
	s.mu.Unlock()

	log := s.logger.WithFields(map[string]interface{}{
		"job":      jobName,
		"duration": result.Duration,
		"attempts": attempts,
	})
	if result.Success {
		log.Info("Job completed successfully")
	} else {
		log.WithError(lastErr).Error("Job failed after all retries")
	}
	return result
}

// History returns the recent results of a job
func (s *Scheduler) History(jobName string, n int) ([]JobResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, exists := s.history[jobName]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobName)
	}
	return history.Latest(n), nil
}

// Jobs returns registered job names, sorted
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// JobStats represents statistics for a job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	Running      bool       `json:"running"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  bool       `json:"last_success"`
	NextRun      *time.Time `json:"next_run,omitempty"`
}

// Stats returns statistics for all jobs, sorted by name
func (s *Scheduler) Stats() []JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make([]JobStats, 0, len(s.jobs))
	for name, job := range s.jobs {
		history := s.history[name]
		st := JobStats{
			JobName:      name,
			Schedule:     job.Schedule(),
			Running:      s.running[name],
			TotalRuns:    len(history.Results),
			FailureCount: history.FailureCount(),
			SuccessRate:  history.SuccessRate(),
		}
		st.SuccessCount = st.TotalRuns - st.FailureCount

		if latest := history.Latest(1); len(latest) == 1 {
			t := latest[0].StartTime
			st.LastRun = &t
			st.LastSuccess = latest[0].Success
		}
		// cron이 시작되기 전에는 Next가 0
		if next := s.cron.Entry(s.entries[name]).Next; !next.IsZero() {
			st.NextRun = &next
		}
		stats = append(stats, st)
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].JobName < stats[j].JobName })
	return stats
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
