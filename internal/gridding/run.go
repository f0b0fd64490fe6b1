package gridding

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Phase is the lifecycle state of a Run
type Phase int

const (
	PhaseInit Phase = iota
	PhaseAccumulating
	PhaseMerging
	PhaseFinalized
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseAccumulating:
		return "accumulating"
	case PhaseMerging:
		return "merging"
	case PhaseFinalized:
		return "finalized"
	case PhaseAborted:
		return "aborted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Unit is one swath file waiting to be gridded.
// Load performs whatever I/O is needed and returns the in-memory swath.
type Unit struct {
	Source string
	Load   func(ctx context.Context) (*Swath, error)
}

// UnitResult reports how one unit went
type UnitResult struct {
	Source   string
	Stats    GridStats
	Err      error
	Duration time.Duration
}

// RunOptions configures a Run
type RunOptions struct {
	// Workers bounds concurrent units; 0 means GOMAXPROCS
	Workers    int
	MinSamples int
	// OnUnit is called from the merging goroutine after each unit is merged or failed
	OnUnit func(UnitResult)
}

// Run is a single processing window: INIT → ACCUMULATING → MERGING → FINALIZED.
// There are no back transitions; start a new Run for the next window.
type Run struct {
	mu     sync.Mutex
	phase  Phase
	spec   Spec
	filter Filter
	opts   RunOptions
	agg    *Aggregator
}

// NewRun constructs a run in PhaseInit
func NewRun(spec Spec, filter Filter, opts RunOptions) (*Run, error) {
	if spec.Size() == 0 {
		return nil, &ConfigurationError{Field: "grid", Message: "grid specification not initialized (use NewSpec)"}
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.MinSamples < 1 {
		opts.MinSamples = 1
	}
	return &Run{
		phase:  PhaseInit,
		spec:   spec,
		filter: filter,
		opts:   opts,
		agg: NewAggregator(spec, AggregatorOptions{
			MinSamples: opts.MinSamples,
			Filter:     DescribeFilter(filter),
		}),
	}, nil
}

// Phase returns the current phase
func (r *Run) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *Run) transition(from, to Phase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase != from {
		return fmt.Errorf("%w: want %s, run is %s", ErrInvalidPhase, from, r.phase)
	}
	r.phase = to
	return nil
}

func (r *Run) setPhase(p Phase) {
	r.mu.Lock()
	r.phase = p
	r.mu.Unlock()
}

// Process grids every unit and merges the results
// ⭐ SSOT: 파일 단위 병렬 처리 (fan-out) + 단일 병합 (fan-in)
//
// Each worker owns its grid until it is sent on the channel; the merging
// goroutine is the only reader of the aggregate. The channel is unbuffered,
// so at most Workers+1 swath grids are alive next to the aggregate. A failing unit is recorded
// and never aborts the run. When ctx is cancelled the in-flight grids are
// dropped, the run moves to PhaseAborted and ctx.Err() is returned.
func (r *Run) Process(ctx context.Context, units []Unit) error {
	if err := r.transition(PhaseInit, PhaseAccumulating); err != nil {
		return err
	}

	results := make(chan unitOutcome)
	merged := make(chan struct{})

	go func() {
		defer close(merged)
		for out := range results {
			if out.err != nil {
				_ = r.agg.Fail(out.source, out.err)
			} else if err := r.agg.Add(out.source, out.grid, out.stats); err != nil {
				out.err = err
			}
			if r.opts.OnUnit != nil {
				r.opts.OnUnit(UnitResult{
					Source:   out.source,
					Stats:    out.stats,
					Err:      out.err,
					Duration: out.elapsed,
				})
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for _, u := range units {
		if gctx.Err() != nil {
			break
		}
		u := u
		g.Go(func() error {
			out := r.gridUnit(gctx, u)
			if gctx.Err() != nil {
				// 취소 시 진행 중 grid는 버림
				return gctx.Err()
			}
			select {
			case results <- out:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	waitErr := g.Wait()
	close(results)
	<-merged

	if err := ctx.Err(); err != nil {
		r.setPhase(PhaseAborted)
		return err
	}
	if waitErr != nil {
		r.setPhase(PhaseAborted)
		return waitErr
	}

	return r.transition(PhaseAccumulating, PhaseMerging)
}

type unitOutcome struct {
	source  string
	grid    *Grid
	stats   GridStats
	err     error
	elapsed time.Duration
}

func (r *Run) gridUnit(ctx context.Context, u Unit) unitOutcome {
	start := time.Now()
	out := unitOutcome{source: u.Source}

	if u.Load == nil {
		out.err = &MalformedInputError{Source: u.Source, Reason: "no loader"}
		return out
	}

	swath, err := u.Load(ctx)
	if err != nil {
		out.err = fmt.Errorf("load %s: %w", u.Source, err)
		out.elapsed = time.Since(start)
		return out
	}
	if swath != nil && swath.Source == "" {
		swath.Source = u.Source
	}

	grid, stats, err := GridSwath(swath, r.spec, r.filter)
	out.grid, out.stats, out.err = grid, stats, err
	out.elapsed = time.Since(start)
	return out
}

// Finalize produces the daily result. Valid only after Process completed.
func (r *Run) Finalize(date time.Time) (*DailyResult, error) {
	if err := r.transition(PhaseMerging, PhaseFinalized); err != nil {
		return nil, err
	}
	return r.agg.Finalize(date)
}
