package gridding

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// FillValue marks missing cells in finalized float layers
const FillValue = -999.0

// Outcome classifies a processing window by its input files
type Outcome string

const (
	OutcomeComplete Outcome = "complete" // every file gridded
	OutcomePartial  Outcome = "partial"  // some files failed
	OutcomeFailed   Outcome = "failed"   // every file failed
	OutcomeNoInput  Outcome = "no_input" // nothing was offered
)

// FileFailure records why one input was excluded
type FileFailure struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// Manifest lists which inputs contributed to a result
type Manifest struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []FileFailure `json:"failed"`
	Stats     GridStats     `json:"stats"`
}

// Outcome derives the run outcome from the manifest
func (m Manifest) Outcome() Outcome {
	switch {
	case len(m.Succeeded) == 0 && len(m.Failed) == 0:
		return OutcomeNoInput
	case len(m.Failed) == 0:
		return OutcomeComplete
	case len(m.Succeeded) == 0:
		return OutcomeFailed
	default:
		return OutcomePartial
	}
}

// FailedSources returns the identifiers of failed inputs
func (m Manifest) FailedSources() []string {
	out := make([]string, len(m.Failed))
	for i, f := range m.Failed {
		out[i] = f.Source
	}
	return out
}

// DailyResult is the finalized product of one processing window.
// Layers are row-major (north-up) with FillValue for missing cells.
type DailyResult struct {
	Date       time.Time
	Spec       Spec
	MinSamples int
	Filter     string

	Count  []int32
	Mean   []float32
	StdDev []float32
	Min    []float32
	Max    []float32
	Zenith []float32

	FilledCells int
	Manifest    Manifest
}

// Empty reports whether no cell received a reportable mean.
// A fully cloud-covered day is a valid outcome, so this is a warning, not an error.
func (r *DailyResult) Empty() bool {
	return r.FilledCells == 0
}

// MeanAt returns the mean of a cell and whether it is present
func (r *DailyResult) MeanAt(row, col int) (float64, bool) {
	v := r.Mean[r.Spec.Offset(row, col)]
	if v == FillValue {
		return 0, false
	}
	return float64(v), true
}

// CountAt returns the sample count of a cell
func (r *DailyResult) CountAt(row, col int) int32 {
	return r.Count[r.Spec.Offset(row, col)]
}

// AggregatorOptions controls finalization policy
type AggregatorOptions struct {
	// MinSamples is the smallest count for which a cell mean is reported.
	// Values below 1 are treated as 1.
	MinSamples int
	// Filter is recorded in the result metadata
	Filter string
}

// Aggregator merges per-file grids into one daily grid
// ⭐ SSOT: 일별 병합/확정은 이 구조체에서만
//
// Grids are merged as they arrive so only the running aggregate is held in
// memory. Merge order does not matter.
type Aggregator struct {
	mu        sync.Mutex
	spec      Spec
	opts      AggregatorOptions
	running   *Grid
	manifest  Manifest
	finalized bool
}

// NewAggregator creates an aggregator with an empty running grid
func NewAggregator(spec Spec, opts AggregatorOptions) *Aggregator {
	if opts.MinSamples < 1 {
		opts.MinSamples = 1
	}
	return &Aggregator{
		spec:    spec,
		opts:    opts,
		running: NewGrid(spec),
	}
}

// Add merges a completed grid. The caller must not touch grid afterwards.
func (a *Aggregator) Add(source string, grid *Grid, stats GridStats) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return ErrFinalized
	}
	if err := a.running.Merge(grid); err != nil {
		a.manifest.Failed = append(a.manifest.Failed, FileFailure{Source: source, Error: err.Error()})
		return err
	}
	a.manifest.Succeeded = append(a.manifest.Succeeded, source)
	a.manifest.Stats = a.manifest.Stats.Add(stats)
	return nil
}

// Fail records an input that could not be gridded
func (a *Aggregator) Fail(source string, err error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return ErrFinalized
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	a.manifest.Failed = append(a.manifest.Failed, FileFailure{Source: source, Error: msg})
	return nil
}

// Finalize derives per-cell statistics. The aggregator cannot be used afterwards.
func (a *Aggregator) Finalize(date time.Time) (*DailyResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return nil, ErrFinalized
	}
	a.finalized = true

	n := a.spec.Size()
	res := &DailyResult{
		Date:       date,
		Spec:       a.spec,
		MinSamples: a.opts.MinSamples,
		Filter:     a.opts.Filter,
		Count:      make([]int32, n),
		Mean:       make([]float32, n),
		StdDev:     make([]float32, n),
		Min:        make([]float32, n),
		Max:        make([]float32, n),
		Zenith:     make([]float32, n),
	}

	for i, cell := range a.running.cells {
		st := cell.Finalize(a.opts.MinSamples)
		res.Count[i] = int32(st.Count)
		res.Mean[i] = layerValue(st.Mean, st.HasMean)
		res.StdDev[i] = layerValue(st.StdDev, st.HasStdDev)
		res.Min[i] = layerValue(st.Min, st.HasMean)
		res.Max[i] = layerValue(st.Max, st.HasMean)
		res.Zenith[i] = layerValue(st.Zenith, st.HasZenith)
		if st.HasMean {
			res.FilledCells++
		}
	}

	// deterministic manifest regardless of worker completion order
	sort.Strings(a.manifest.Succeeded)
	sort.Slice(a.manifest.Failed, func(i, j int) bool {
		return a.manifest.Failed[i].Source < a.manifest.Failed[j].Source
	})
	res.Manifest = a.manifest
	a.running = nil

	return res, nil
}

func layerValue(v float64, ok bool) float32 {
	if !ok {
		return FillValue
	}
	return float32(v)
}

// Aggregate merges a set of grids in one call and finalizes them.
// All grids must share spec.
func Aggregate(spec Spec, date time.Time, opts AggregatorOptions, grids map[string]*Grid) (*DailyResult, error) {
	agg := NewAggregator(spec, opts)

	sources := make([]string, 0, len(grids))
	for src := range grids {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	for _, src := range sources {
		if err := agg.Add(src, grids[src], GridStats{}); err != nil {
			return nil, fmt.Errorf("merge %s: %w", src, err)
		}
	}
	return agg.Finalize(date)
}
