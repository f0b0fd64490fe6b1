package gridding

import (
	"fmt"
	"math"
)

// Grid is an n_rows × n_cols array of accumulators.
// A dense grid stores every cell in row-major order (the daily aggregate).
// A sparse grid stores only the cells a swath touched, so a per-file grid
// costs memory in proportion to its footprint, not to the global grid.
// A grid is owned by exactly one goroutine at a time; handing it to an
// Aggregator transfers ownership.
type Grid struct {
	spec  Spec
	cells []Accumulator

	// sparse only: cells[i] belongs to row-major offset offsets[i]
	offsets []int
	index   map[int]int
}

// NewGrid creates an all-empty dense grid for spec
func NewGrid(spec Spec) *Grid {
	return &Grid{
		spec:  spec,
		cells: make([]Accumulator, spec.Size()),
	}
}

// NewSparseGrid creates an empty grid that allocates cells on first touch
func NewSparseGrid(spec Spec) *Grid {
	return &Grid{
		spec:  spec,
		index: make(map[int]int),
	}
}

// Spec returns the grid specification
func (g *Grid) Spec() Spec { return g.spec }

// Sparse reports whether only touched cells are stored
func (g *Grid) Sparse() bool { return g.index != nil }

// At returns the accumulator at [row, col]. In a sparse grid the cell is
// allocated if needed; the pointer is valid until the next allocation.
func (g *Grid) At(row, col int) *Accumulator {
	return g.at(g.spec.Offset(row, col))
}

func (g *Grid) at(offset int) *Accumulator {
	if g.index == nil {
		return &g.cells[offset]
	}
	i, ok := g.index[offset]
	if !ok {
		i = len(g.cells)
		g.cells = append(g.cells, Accumulator{})
		g.offsets = append(g.offsets, offset)
		g.index[offset] = i
	}
	return &g.cells[i]
}

// Cells exposes the stored accumulators: row-major for a dense grid,
// first-touch order for a sparse one
func (g *Grid) Cells() []Accumulator { return g.cells }

// Each calls fn for every stored cell with its row-major offset
func (g *Grid) Each(fn func(offset int, cell *Accumulator)) {
	for i := range g.cells {
		off := i
		if g.index != nil {
			off = g.offsets[i]
		}
		fn(off, &g.cells[i])
	}
}

// Merge folds o into g. Only the cells o stores are visited.
func (g *Grid) Merge(o *Grid) error {
	if !g.spec.Equal(o.spec) {
		return fmt.Errorf("%w: %s vs %s", ErrSpecMismatch, g.spec, o.spec)
	}
	o.Each(func(off int, cell *Accumulator) {
		if cell.Count == 0 && cell.ZenithCount == 0 {
			return
		}
		g.at(off).Merge(*cell)
	})
	return nil
}

// TotalCount returns the number of pixels accumulated over all cells
func (g *Grid) TotalCount() int64 {
	var n int64
	for i := range g.cells {
		n += g.cells[i].Count
	}
	return n
}

// FilledCells returns the number of cells with at least one pixel
func (g *Grid) FilledCells() int {
	n := 0
	for i := range g.cells {
		if g.cells[i].Count > 0 {
			n++
		}
	}
	return n
}

// Swath is one unit of raw L2 data: equal-length per-pixel arrays
// plus a source identifier for error attribution
type Swath struct {
	Source  string
	Lat     []float64
	Lon     []float64
	Value   []float64
	Quality []int
	Zenith  []float64 // optional, nil when the product has no geometry layer
}

// Len returns the number of pixels
func (s *Swath) Len() int { return len(s.Value) }

// Validate checks that the arrays line up
func (s *Swath) Validate() error {
	if s == nil {
		return &MalformedInputError{Source: "", Reason: "nil swath"}
	}
	if s.Source == "" {
		return &MalformedInputError{Source: s.Source, Reason: "missing source identifier"}
	}
	n := len(s.Value)
	if len(s.Lat) != n || len(s.Lon) != n || len(s.Quality) != n {
		return &MalformedInputError{
			Source: s.Source,
			Reason: fmt.Sprintf("array lengths differ: lat=%d lon=%d value=%d quality=%d", len(s.Lat), len(s.Lon), n, len(s.Quality)),
		}
	}
	if s.Zenith != nil && len(s.Zenith) != n {
		return &MalformedInputError{
			Source: s.Source,
			Reason: fmt.Sprintf("zenith length %d does not match %d pixels", len(s.Zenith), n),
		}
	}
	return nil
}

// GridStats counts what happened to each pixel of a swath
type GridStats struct {
	Total       int `json:"total"`
	Rejected    int `json:"rejected"`
	OutOfBounds int `json:"out_of_bounds"`
	Accepted    int `json:"accepted"`
}

// Add sums two stats
func (s GridStats) Add(o GridStats) GridStats {
	return GridStats{
		Total:       s.Total + o.Total,
		Rejected:    s.Rejected + o.Rejected,
		OutOfBounds: s.OutOfBounds + o.OutOfBounds,
		Accepted:    s.Accepted + o.Accepted,
	}
}

// GridSwath bins one swath onto a fresh sparse grid
// ⭐ SSOT: 픽셀 → 격자 누적은 이 함수에서만
//
// Pixels rejected by the filter or outside the grid are skipped. The function
// touches nothing but its own output, so calls for different swaths can run
// in parallel.
func GridSwath(swath *Swath, spec Spec, filter Filter) (*Grid, GridStats, error) {
	if err := swath.Validate(); err != nil {
		return nil, GridStats{}, err
	}

	grid := NewSparseGrid(spec)
	stats := GridStats{Total: swath.Len()}

	for i, v := range swath.Value {
		if filter != nil && !filter.Accept(v, swath.Quality[i]) {
			stats.Rejected++
			continue
		}
		if filter == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
			stats.Rejected++
			continue
		}

		row, col, ok := spec.CellIndex(swath.Lat[i], swath.Lon[i])
		if !ok {
			stats.OutOfBounds++
			continue
		}

		cell := grid.At(row, col)
		cell.Add(v)
		if swath.Zenith != nil {
			cell.AddZenith(swath.Zenith[i])
		}
		stats.Accepted++
	}

	return grid, stats, nil
}
