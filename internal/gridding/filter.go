package gridding

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Filter decides whether a pixel takes part in gridding.
// Implementations must be pure: no state, no side effects.
type Filter interface {
	Accept(value float64, quality int) bool
}

// Describer is implemented by filters that can summarize their configuration
// for output metadata
type Describer interface {
	Describe() string
}

// FilterFunc adapts a plain function to Filter
type FilterFunc func(value float64, quality int) bool

// Accept calls f
func (f FilterFunc) Accept(value float64, quality int) bool { return f(value, quality) }

// Describe implements Describer
func (f FilterFunc) Describe() string { return "custom" }

// validValue rejects non-finite values and the fill sentinel
func validValue(value, fill float64) bool {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return false
	}
	return value != fill
}

// QualityThreshold accepts pixels whose flag is at least MinQuality.
// ValidMin/ValidMax bound the accepted value range when HasRange is set.
type QualityThreshold struct {
	MinQuality int
	FillValue  float64
	HasRange   bool
	ValidMin   float64
	ValidMax   float64
}

// Accept implements Filter
func (q QualityThreshold) Accept(value float64, quality int) bool {
	if !validValue(value, q.FillValue) {
		return false
	}
	if quality < q.MinQuality {
		return false
	}
	if q.HasRange && (value < q.ValidMin || value > q.ValidMax) {
		return false
	}
	return true
}

// Describe implements Describer
func (q QualityThreshold) Describe() string {
	s := fmt.Sprintf("quality>=%d fill=%g", q.MinQuality, q.FillValue)
	if q.HasRange {
		s += fmt.Sprintf(" range=[%g,%g]", q.ValidMin, q.ValidMax)
	}
	return s
}

// FlagSet accepts only the listed flag codes
type FlagSet struct {
	Accepted  map[int]bool
	FillValue float64
}

// NewFlagSet builds a FlagSet from a list of accepted codes
func NewFlagSet(fill float64, codes ...int) FlagSet {
	m := make(map[int]bool, len(codes))
	for _, c := range codes {
		m[c] = true
	}
	return FlagSet{Accepted: m, FillValue: fill}
}

// Accept implements Filter
func (f FlagSet) Accept(value float64, quality int) bool {
	return validValue(value, f.FillValue) && f.Accepted[quality]
}

// Describe implements Describer
func (f FlagSet) Describe() string {
	codes := make([]int, 0, len(f.Accepted))
	for c, ok := range f.Accepted {
		if ok {
			codes = append(codes, c)
		}
	}
	sort.Ints(codes)
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = fmt.Sprint(c)
	}
	return fmt.Sprintf("quality in {%s} fill=%g", strings.Join(parts, ","), f.FillValue)
}

// AllOf accepts a pixel only when every filter accepts it
type AllOf []Filter

// Accept implements Filter
func (a AllOf) Accept(value float64, quality int) bool {
	for _, f := range a {
		if !f.Accept(value, quality) {
			return false
		}
	}
	return true
}

// Describe implements Describer
func (a AllOf) Describe() string {
	parts := make([]string, len(a))
	for i, f := range a {
		parts[i] = DescribeFilter(f)
	}
	return strings.Join(parts, " AND ")
}

// DescribeFilter returns a human-readable summary of any filter
func DescribeFilter(f Filter) string {
	if f == nil {
		return "none"
	}
	if d, ok := f.(Describer); ok {
		return d.Describe()
	}
	return fmt.Sprintf("%T", f)
}
