package manifest

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/aodgrid/internal/gridding"
)

// ErrNotFound is returned when no run exists for a day-product
var ErrNotFound = errors.New("run not found")

// Status is the state of one product-day run
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
	StatusFailed   Status = "failed"
	StatusNoInput  Status = "no_input"
	StatusEmpty    Status = "empty" // files gridded but no cell reached min_samples
)

// Done reports whether the status is terminal
func (s Status) Done() bool {
	return s != StatusRunning
}

// Succeeded reports whether the run produced output
func (s Status) Succeeded() bool {
	return s == StatusComplete || s == StatusPartial || s == StatusEmpty
}

// Record is one row of run history
type Record struct {
	ID             uuid.UUID              `json:"id"`
	RunDate        time.Time              `json:"run_date"`
	Product        string                 `json:"product"`
	Status         Status                 `json:"status"`
	ConfigHash     string                 `json:"config_hash"`
	FilesOK        []string               `json:"files_ok"`
	FilesFailed    []gridding.FileFailure `json:"files_failed"`
	PixelsTotal    int64                  `json:"pixels_total"`
	PixelsAccepted int64                  `json:"pixels_accepted"`
	CellsFilled    int                    `json:"cells_filled"`
	OutputPath     string                 `json:"output_path"`
	Error          string                 `json:"error,omitempty"`
	StartedAt      time.Time              `json:"started_at"`
	FinishedAt     *time.Time             `json:"finished_at,omitempty"`
}

// NewRecord starts a run record
func NewRecord(date time.Time, product, configHash string, now time.Time) *Record {
	return &Record{
		ID:         uuid.New(),
		RunDate:    date,
		Product:    product,
		Status:     StatusRunning,
		ConfigHash: configHash,
		StartedAt:  now,
	}
}

// StatusFor maps a finalized result to a run status
func StatusFor(res *gridding.DailyResult) Status {
	switch res.Manifest.Outcome() {
	case gridding.OutcomeNoInput:
		return StatusNoInput
	case gridding.OutcomeFailed:
		return StatusFailed
	}
	if res.Empty() {
		return StatusEmpty
	}
	if res.Manifest.Outcome() == gridding.OutcomePartial {
		return StatusPartial
	}
	return StatusComplete
}

// Finish records the outcome of a finalized result
func (r *Record) Finish(res *gridding.DailyResult, outputPath string, now time.Time) {
	r.Status = StatusFor(res)
	r.FilesOK = res.Manifest.Succeeded
	r.FilesFailed = res.Manifest.Failed
	r.PixelsTotal = int64(res.Manifest.Stats.Total)
	r.PixelsAccepted = int64(res.Manifest.Stats.Accepted)
	r.CellsFilled = res.FilledCells
	r.OutputPath = outputPath
	r.FinishedAt = &now
}

// Abort marks the run failed without a result
func (r *Record) Abort(err error, now time.Time) {
	r.Status = StatusFailed
	if err != nil {
		r.Error = err.Error()
	}
	r.FinishedAt = &now
}
