package jobs

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/wonny/aodgrid/pkg/logger"
)

// WorkDirCleanupJob removes stale downloads left behind by crashed runs
type WorkDirCleanupJob struct {
	dir    string
	maxAge time.Duration
	logger *logger.Logger
	now    func() time.Time
}

// NewWorkDirCleanupJob creates a new cleanup job
func NewWorkDirCleanupJob(dir string, maxAge time.Duration, log *logger.Logger) *WorkDirCleanupJob {
	return &WorkDirCleanupJob{
		dir:    dir,
		maxAge: maxAge,
		logger: log,
		now:    time.Now,
	}
}

// Name returns the job name
func (j *WorkDirCleanupJob) Name() string {
	return "workdir_cleanup"
}

// Schedule returns the cron schedule (hourly)
func (j *WorkDirCleanupJob) Schedule() string {
	return "@hourly"
}

// Run deletes regular files older than maxAge
func (j *WorkDirCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.maxAge)
	removed := 0

	err := filepath.WalkDir(j.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if removed > 0 {
		j.logger.WithField("removed", removed).Info("Work directory cleanup completed")
	}
	return nil
}
