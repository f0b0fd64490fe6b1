package gridding

import (
	"fmt"
	"math"
)

// cellEpsilon absorbs floating-point noise when deriving grid dimensions,
// e.g. 360/0.1 = 3600.0000000000005 must still give 3600 columns.
const cellEpsilon = 1e-9

// Spec defines the target regular lat/lon grid
// ⭐ SSOT: 격자 정의와 좌표 → 셀 매핑은 여기서만
//
// Orientation: row 0 is the northernmost band and rows grow southwards;
// col 0 is the westernmost band and columns grow eastwards. Cells are
// half-open: [min, max) on both axes.
type Spec struct {
	Resolution float64 `json:"resolution"`
	MinLon     float64 `json:"min_lon"`
	MaxLon     float64 `json:"max_lon"`
	MinLat     float64 `json:"min_lat"`
	MaxLat     float64 `json:"max_lat"`

	rows int
	cols int
}

// NewSpec validates the parameters and derives the grid dimensions.
// The last row/column may be partial when resolution does not divide the extent.
func NewSpec(resolution, minLon, maxLon, minLat, maxLat float64) (Spec, error) {
	if math.IsNaN(resolution) || math.IsInf(resolution, 0) || resolution <= 0 {
		return Spec{}, &ConfigurationError{Field: "grid_size", Message: fmt.Sprintf("must be a positive number, got %v", resolution)}
	}
	for _, b := range []struct {
		name string
		v    float64
	}{{"min_lon", minLon}, {"max_lon", maxLon}, {"min_lat", minLat}, {"max_lat", maxLat}} {
		if math.IsNaN(b.v) || math.IsInf(b.v, 0) {
			return Spec{}, &ConfigurationError{Field: b.name, Message: "must be finite"}
		}
	}
	if minLon >= maxLon {
		return Spec{}, &ConfigurationError{Field: "min_lon", Message: fmt.Sprintf("must be less than max_lon (%v >= %v)", minLon, maxLon)}
	}
	if minLat >= maxLat {
		return Spec{}, &ConfigurationError{Field: "min_lat", Message: fmt.Sprintf("must be less than max_lat (%v >= %v)", minLat, maxLat)}
	}
	if minLon < -180 || maxLon > 180 {
		return Spec{}, &ConfigurationError{Field: "min_lon/max_lon", Message: "must lie within [-180, 180]"}
	}
	if minLat < -90 || maxLat > 90 {
		return Spec{}, &ConfigurationError{Field: "min_lat/max_lat", Message: "must lie within [-90, 90]"}
	}

	s := Spec{
		Resolution: resolution,
		MinLon:     minLon,
		MaxLon:     maxLon,
		MinLat:     minLat,
		MaxLat:     maxLat,
	}
	s.cols = cellsAlong(maxLon-minLon, resolution)
	s.rows = cellsAlong(maxLat-minLat, resolution)
	return s, nil
}

func cellsAlong(extent, resolution float64) int {
	n := int(math.Ceil(extent/resolution - cellEpsilon))
	if n < 1 {
		n = 1
	}
	return n
}

// Rows returns the number of latitude bands
func (s Spec) Rows() int { return s.rows }

// Cols returns the number of longitude bands
func (s Spec) Cols() int { return s.cols }

// Size returns the number of cells
func (s Spec) Size() int { return s.rows * s.cols }

// CellIndex maps a coordinate to its cell.
// ok is false when the coordinate falls outside [min_lat,max_lat) × [min_lon,max_lon);
// callers drop such pixels silently.
func (s Spec) CellIndex(lat, lon float64) (row, col int, ok bool) {
	// NaN fails every comparison below
	if !(lon >= s.MinLon && lon < s.MaxLon && lat >= s.MinLat && lat < s.MaxLat) {
		return 0, 0, false
	}

	col = int(math.Floor((lon - s.MinLon) / s.Resolution))
	row = int(math.Floor((s.MaxLat - lat) / s.Resolution))

	// lat just below max_lat rounds to row 0; lat == min_lat+tiny can
	// round past the last row when the extent is not a multiple of resolution
	if col >= s.cols {
		col = s.cols - 1
	}
	if row >= s.rows {
		row = s.rows - 1
	}
	return row, col, true
}

// Offset returns the row-major position of a cell
func (s Spec) Offset(row, col int) int {
	return row*s.cols + col
}

// CellCenter returns the center coordinate of a cell.
// Partial edge cells report the center of the full-size cell.
func (s Spec) CellCenter(row, col int) (lat, lon float64) {
	lat = s.MaxLat - (float64(row)+0.5)*s.Resolution
	lon = s.MinLon + (float64(col)+0.5)*s.Resolution
	return lat, lon
}

// Latitudes returns cell-center latitudes, north to south
func (s Spec) Latitudes() []float64 {
	out := make([]float64, s.rows)
	for r := range out {
		out[r], _ = s.CellCenter(r, 0)
	}
	return out
}

// Longitudes returns cell-center longitudes, west to east
func (s Spec) Longitudes() []float64 {
	out := make([]float64, s.cols)
	for c := range out {
		_, out[c] = s.CellCenter(0, c)
	}
	return out
}

// Equal reports whether both specs describe the same grid
func (s Spec) Equal(o Spec) bool {
	return s.Resolution == o.Resolution &&
		s.MinLon == o.MinLon && s.MaxLon == o.MaxLon &&
		s.MinLat == o.MinLat && s.MaxLat == o.MaxLat &&
		s.rows == o.rows && s.cols == o.cols
}

func (s Spec) String() string {
	return fmt.Sprintf("%gdeg lon[%g,%g) lat[%g,%g) %dx%d", s.Resolution, s.MinLon, s.MaxLon, s.MinLat, s.MaxLat, s.rows, s.cols)
}
