package gridding

import "math"

// Accumulator holds running statistics for one grid cell.
// The zero value is an empty cell.
type Accumulator struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	SumSq float64 `json:"sum_sq"`
	Min   float64 `json:"min"` // valid only when Count > 0
	Max   float64 `json:"max"` // valid only when Count > 0

	// sensor zenith angle, averaged alongside the value
	ZenithSum   float64 `json:"zenith_sum"`
	ZenithCount int64   `json:"zenith_count"`
}

// Add records one pre-validated value
func (a *Accumulator) Add(value float64) {
	if a.Count == 0 || value < a.Min {
		a.Min = value
	}
	if a.Count == 0 || value > a.Max {
		a.Max = value
	}
	a.Count++
	a.Sum += value
	a.SumSq += value * value
}

// AddZenith records the viewing geometry of an accepted pixel; NaN is ignored
func (a *Accumulator) AddZenith(angle float64) {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return
	}
	a.ZenithSum += angle
	a.ZenithCount++
}

// Merge folds another accumulator for the same cell into a.
// Field-wise addition: associative and commutative.
func (a *Accumulator) Merge(o Accumulator) {
	if o.Count > 0 {
		if a.Count == 0 || o.Min < a.Min {
			a.Min = o.Min
		}
		if a.Count == 0 || o.Max > a.Max {
			a.Max = o.Max
		}
	}
	a.Count += o.Count
	a.Sum += o.Sum
	a.SumSq += o.SumSq
	a.ZenithSum += o.ZenithSum
	a.ZenithCount += o.ZenithCount
}

// Stat is the finalized view of a cell. Missing statistics are flagged,
// their float fields are left at zero.
type Stat struct {
	Count     int64
	Mean      float64
	HasMean   bool
	StdDev    float64
	HasStdDev bool
	Min       float64
	Max       float64
	Zenith    float64
	HasZenith bool
}

// Finalize derives the cell statistics.
// The mean is reported only when Count >= minSamples (at least 1);
// the standard deviation additionally requires Count >= 2.
func (a Accumulator) Finalize(minSamples int) Stat {
	if minSamples < 1 {
		minSamples = 1
	}
	st := Stat{Count: a.Count}
	if a.Count == 0 || a.Count < int64(minSamples) {
		return st
	}

	n := float64(a.Count)
	st.Mean = a.Sum / n
	st.HasMean = true
	st.Min = a.Min
	st.Max = a.Max

	if a.Count >= 2 {
		variance := a.SumSq/n - st.Mean*st.Mean
		if variance < 0 {
			// 반올림 오차로 음수가 될 수 있음
			variance = 0
		}
		st.StdDev = math.Sqrt(variance)
		st.HasStdDev = true
	}

	if a.ZenithCount > 0 {
		st.Zenith = a.ZenithSum / float64(a.ZenithCount)
		st.HasZenith = true
	}
	return st
}
