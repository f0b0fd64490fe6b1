package gridding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	qualityGood = 3
	qualityBad  = 0
)

var goodOnly = QualityThreshold{MinQuality: qualityGood, FillValue: FillValue}

func TestGridSwath_EndToEnd(t *testing.T) {
	spec := mustSpec(t, 1.0, -2, 2, -2, 2)
	swath := &Swath{
		Source:  "A2024001.nc",
		Lat:     []float64{0.5, 0.5, -1.5},
		Lon:     []float64{0.5, 0.5, -1.5},
		Value:   []float64{10, 20, 5},
		Quality: []int{qualityGood, qualityGood, qualityBad},
	}

	grid, stats, err := GridSwath(swath, spec, goodOnly)
	require.NoError(t, err)
	assert.Equal(t, GridStats{Total: 3, Rejected: 1, Accepted: 2}, stats)

	for r := 0; r < spec.Rows(); r++ {
		for c := 0; c < spec.Cols(); c++ {
			st := grid.At(r, c).Finalize(1)
			if r == 1 && c == 2 {
				assert.Equal(t, int64(2), st.Count)
				assert.True(t, st.HasMean)
				assert.Equal(t, 15.0, st.Mean)
				continue
			}
			assert.Equal(t, int64(0), st.Count, "cell [%d,%d]", r, c)
			assert.False(t, st.HasMean, "cell [%d,%d]", r, c)
		}
	}
}

func TestGridSwath_CountNeverExceedsPixels(t *testing.T) {
	spec := mustSpec(t, 0.5, -2, 2, -2, 2)
	swath := &Swath{
		Source:  "mixed",
		Lat:     []float64{0, 1, 5, -1.9, 1.99, math.NaN(), -2, 0.3},
		Lon:     []float64{0, 1, 0, 1.9, -1.99, 0, 2, 0.3},
		Value:   []float64{0.1, 0.2, 0.3, FillValue, 0.5, 0.6, 0.7, math.Inf(1)},
		Quality: []int{3, 3, 3, 3, 1, 3, 3, 3},
	}

	grid, stats, err := GridSwath(swath, spec, goodOnly)
	require.NoError(t, err)

	assert.LessOrEqual(t, grid.TotalCount(), int64(swath.Len()))
	assert.Equal(t, int64(stats.Accepted), grid.TotalCount())
	assert.Equal(t, stats.Total, stats.Accepted+stats.Rejected+stats.OutOfBounds)
	// 0,0 and 1,1 in bounds; 5,0 / NaN / max-lon out; fill, low quality, +Inf rejected
	assert.Equal(t, 2, stats.Accepted)
	assert.Equal(t, 3, stats.Rejected)
	assert.Equal(t, 3, stats.OutOfBounds)
}

func TestGridSwath_AllValidInBoundsEquality(t *testing.T) {
	spec := mustSpec(t, 1.0, -2, 2, -2, 2)
	swath := &Swath{
		Source:  "all-good",
		Lat:     []float64{-2, -1, 0, 1, 1.5},
		Lon:     []float64{-2, -1, 0, 1, 1.5},
		Value:   []float64{1, 2, 3, 4, 5},
		Quality: []int{3, 3, 3, 3, 3},
	}

	grid, _, err := GridSwath(swath, spec, goodOnly)
	require.NoError(t, err)
	assert.Equal(t, int64(swath.Len()), grid.TotalCount())
}

func TestGridSwath_HalfOpenBoundaries(t *testing.T) {
	spec := mustSpec(t, 1.0, -2, 2, -2, 2)
	swath := &Swath{
		Source:  "edges",
		Lat:     []float64{0, 2, -2, 0},
		Lon:     []float64{2, 0, 0, -2},
		Value:   []float64{100, 200, 7, 8},
		Quality: []int{3, 3, 3, 3},
	}

	grid, stats, err := GridSwath(swath, spec, goodOnly)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.OutOfBounds)
	assert.Equal(t, int64(2), grid.TotalCount())

	// min_lat lands in the southern row, min_lon in the western column
	assert.Equal(t, int64(1), grid.At(3, 2).Count)
	assert.Equal(t, int64(1), grid.At(2, 0).Count)
	for _, cell := range grid.Cells() {
		assert.NotEqual(t, 100.0, cell.Max)
		assert.NotEqual(t, 200.0, cell.Max)
	}
}

func TestGridSwath_DuplicateDoublesCounts(t *testing.T) {
	spec := mustSpec(t, 1.0, -2, 2, -2, 2)
	swath := &Swath{
		Source:  "dup",
		Lat:     []float64{0.5, 0.5, -0.5, 1.2},
		Lon:     []float64{0.5, -1.5, 1.5, 0.1},
		Value:   []float64{0.3, 0.6, 0.9, 1.2},
		Quality: []int{3, 3, 3, 3},
	}

	once, _, err := GridSwath(swath, spec, goodOnly)
	require.NoError(t, err)
	a, _, err := GridSwath(swath, spec, goodOnly)
	require.NoError(t, err)
	b, _, err := GridSwath(swath, spec, goodOnly)
	require.NoError(t, err)

	require.NoError(t, a.Merge(b))
	for i, cell := range a.Cells() {
		assert.Equal(t, 2*once.Cells()[i].Count, cell.Count)
		assert.InDelta(t, 2*once.Cells()[i].Sum, cell.Sum, 1e-12)
	}
}

func TestGridSwath_Malformed(t *testing.T) {
	spec := mustSpec(t, 1.0, -2, 2, -2, 2)

	tests := []struct {
		name  string
		swath *Swath
	}{
		{"nil", nil},
		{"no source", &Swath{Lat: []float64{0}, Lon: []float64{0}, Value: []float64{1}, Quality: []int{3}}},
		{"short lat", &Swath{Source: "x", Lat: []float64{}, Lon: []float64{0}, Value: []float64{1}, Quality: []int{3}}},
		{"short quality", &Swath{Source: "x", Lat: []float64{0}, Lon: []float64{0}, Value: []float64{1}, Quality: nil}},
		{"zenith mismatch", &Swath{Source: "x", Lat: []float64{0}, Lon: []float64{0}, Value: []float64{1}, Quality: []int{3}, Zenith: []float64{1, 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid, _, err := GridSwath(tt.swath, spec, goodOnly)
			require.Error(t, err)
			assert.Nil(t, grid)
			assert.True(t, IsMalformedInput(err))
		})
	}
}

func TestGridSwath_NilFilterStillRejectsNonFinite(t *testing.T) {
	spec := mustSpec(t, 1.0, -2, 2, -2, 2)
	swath := &Swath{
		Source:  "nofilter",
		Lat:     []float64{0, 0},
		Lon:     []float64{0, 0},
		Value:   []float64{math.NaN(), 1},
		Quality: []int{0, 0},
	}

	grid, stats, err := GridSwath(swath, spec, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, int64(1), grid.TotalCount())
}

func TestGridSwath_Zenith(t *testing.T) {
	spec := mustSpec(t, 1.0, -2, 2, -2, 2)
	swath := &Swath{
		Source:  "vza",
		Lat:     []float64{0.5, 0.5, 0.5},
		Lon:     []float64{0.5, 0.5, 0.5},
		Value:   []float64{0.1, 0.2, 0.3},
		Quality: []int{3, 3, 0},
		Zenith:  []float64{20, 40, 60},
	}

	grid, _, err := GridSwath(swath, spec, goodOnly)
	require.NoError(t, err)

	st := grid.At(1, 2).Finalize(1)
	assert.True(t, st.HasZenith)
	assert.Equal(t, 30.0, st.Zenith)
}

func TestGrid_MergeSpecMismatch(t *testing.T) {
	a := NewGrid(mustSpec(t, 1.0, -2, 2, -2, 2))
	b := NewGrid(mustSpec(t, 0.5, -2, 2, -2, 2))

	err := a.Merge(b)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSpecMismatch)
}

func TestFilters(t *testing.T) {
	rangeFilter := QualityThreshold{MinQuality: 1, FillValue: -999, HasRange: true, ValidMin: -0.05, ValidMax: 5.0}
	flags := NewFlagSet(-999, 2, 3)

	tests := []struct {
		name    string
		filter  Filter
		value   float64
		quality int
		want    bool
	}{
		{"threshold accepts", rangeFilter, 0.3, 1, true},
		{"threshold rejects quality", rangeFilter, 0.3, 0, false},
		{"threshold rejects fill", rangeFilter, -999, 3, false},
		{"threshold rejects NaN", rangeFilter, math.NaN(), 3, false},
		{"threshold rejects -Inf", rangeFilter, math.Inf(-1), 3, false},
		{"threshold rejects above range", rangeFilter, 5.01, 3, false},
		{"threshold accepts range edge", rangeFilter, -0.05, 3, true},
		{"flag set accepts", flags, 0.3, 2, true},
		{"flag set rejects", flags, 0.3, 1, false},
		{"all of", AllOf{rangeFilter, flags}, 0.3, 3, true},
		{"all of rejects", AllOf{rangeFilter, flags}, 6, 3, false},
		{"func", FilterFunc(func(v float64, q int) bool { return q%2 == 0 }), 1, 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Accept(tt.value, tt.quality))
		})
	}
}

func TestDescribeFilter(t *testing.T) {
	assert.Equal(t, "none", DescribeFilter(nil))
	assert.Equal(t, "quality>=2 fill=-999", DescribeFilter(QualityThreshold{MinQuality: 2, FillValue: -999}))
	assert.Equal(t, "quality in {1,3} fill=-999", DescribeFilter(NewFlagSet(-999, 3, 1)))
	assert.Equal(t,
		"quality>=1 fill=-999 range=[0,5] AND custom",
		DescribeFilter(AllOf{
			QualityThreshold{MinQuality: 1, FillValue: -999, HasRange: true, ValidMin: 0, ValidMax: 5},
			FilterFunc(func(float64, int) bool { return true }),
		}),
	)
}

func TestGridSwath_SparseFootprint(t *testing.T) {
	spec := mustSpec(t, 0.1, -180, 180, -90, 90)
	swath := &Swath{
		Source:  "tiny",
		Lat:     []float64{37.55, 37.55, -10.01},
		Lon:     []float64{126.97, 126.97, 20.5},
		Value:   []float64{0.2, 0.4, 0.6},
		Quality: []int{3, 3, 3},
	}

	grid, stats, err := GridSwath(swath, spec, goodOnly)
	require.NoError(t, err)
	assert.True(t, grid.Sparse())
	assert.Equal(t, 3, stats.Accepted)
	// two touched cells out of 6.48M
	assert.Len(t, grid.Cells(), 2)
	assert.Equal(t, 2, grid.FilledCells())
	assert.Equal(t, int64(3), grid.TotalCount())
}

func TestGrid_MergeSparseIntoDense(t *testing.T) {
	spec := mustSpec(t, 1.0, -2, 2, -2, 2)
	sparse, _, err := GridSwath(&Swath{
		Source:  "s",
		Lat:     []float64{0.5, -1.5},
		Lon:     []float64{0.5, 1.5},
		Value:   []float64{0.3, 0.9},
		Quality: []int{3, 3},
	}, spec, goodOnly)
	require.NoError(t, err)

	dense := NewGrid(spec)
	dense.At(1, 2).Add(0.1)
	require.NoError(t, dense.Merge(sparse))

	assert.False(t, dense.Sparse())
	assert.Len(t, dense.Cells(), spec.Size())
	assert.Equal(t, int64(2), dense.At(1, 2).Count)
	assert.InDelta(t, 0.4, dense.At(1, 2).Sum, 1e-12)
	assert.Equal(t, int64(1), dense.At(3, 3).Count)
	assert.Equal(t, int64(3), dense.TotalCount())

	visited := 0
	sparse.Each(func(offset int, cell *Accumulator) {
		visited++
		assert.Greater(t, cell.Count, int64(0))
	})
	assert.Equal(t, 2, visited)
}
