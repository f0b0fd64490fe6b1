// Package combine merges two finalized daily mean layers (Deep Blue and Dark Target)
// into the blended layers shipped alongside them.
package combine

import (
	"fmt"
	"math"

	"github.com/wonny/aodgrid/internal/gridding"
)

// Layers holds the three blended layers. All share the input grid layout
// and use gridding.FillValue for missing cells.
type Layers struct {
	PrimaryFirst   []float32 // primary where valid, else secondary (DB_DT)
	SecondaryFirst []float32 // secondary where valid, else primary (DT_DB)
	Average        []float32 // mean of both where both valid, else whichever is valid
}

// Build computes all blended layers from two mean layers of the same grid
func Build(primary, secondary []float32) (Layers, error) {
	if len(primary) != len(secondary) {
		return Layers{}, fmt.Errorf("%w: layer sizes %d and %d", gridding.ErrSpecMismatch, len(primary), len(secondary))
	}

	n := len(primary)
	out := Layers{
		PrimaryFirst:   make([]float32, n),
		SecondaryFirst: make([]float32, n),
		Average:        make([]float32, n),
	}

	for i := 0; i < n; i++ {
		p, s := primary[i], secondary[i]
		pOK, sOK := valid(p), valid(s)

		switch {
		case pOK && sOK:
			out.PrimaryFirst[i] = p
			out.SecondaryFirst[i] = s
			out.Average[i] = (p + s) / 2
		case pOK:
			out.PrimaryFirst[i] = p
			out.SecondaryFirst[i] = p
			out.Average[i] = p
		case sOK:
			out.PrimaryFirst[i] = s
			out.SecondaryFirst[i] = s
			out.Average[i] = s
		default:
			out.PrimaryFirst[i] = gridding.FillValue
			out.SecondaryFirst[i] = gridding.FillValue
			out.Average[i] = gridding.FillValue
		}
	}
	return out, nil
}

// FromResults blends the mean layers of two daily results.
// A nil result is treated as an all-missing layer.
func FromResults(primary, secondary *gridding.DailyResult) (Layers, error) {
	switch {
	case primary == nil && secondary == nil:
		return Layers{}, fmt.Errorf("combine: both results missing")
	case primary == nil:
		return Build(missing(len(secondary.Mean)), secondary.Mean)
	case secondary == nil:
		return Build(primary.Mean, missing(len(primary.Mean)))
	}
	if !primary.Spec.Equal(secondary.Spec) {
		return Layers{}, fmt.Errorf("%w: %s vs %s", gridding.ErrSpecMismatch, primary.Spec, secondary.Spec)
	}
	return Build(primary.Mean, secondary.Mean)
}

// Filled counts cells with a value
func Filled(layer []float32) int {
	n := 0
	for _, v := range layer {
		if valid(v) {
			n++
		}
	}
	return n
}

func valid(v float32) bool {
	return v != gridding.FillValue && !math.IsNaN(float64(v))
}

func missing(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = gridding.FillValue
	}
	return out
}
