package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wonny/aodgrid/internal/combine"
	"github.com/wonny/aodgrid/internal/gridding"
)

var (
	testDay      = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	testProduced = time.Date(2024, 1, 15, 12, 34, 56, 0, time.UTC)
	testMeta     = Metadata{
		ShortName: "AER_DBDT_D10KM_L3_VIIRS",
		Satellite: "SNPP",
		Version:   "001",
		Produced:  testProduced,
	}
)

// dailyResult grids one swath onto a 2x3 grid (1° cells over 0..3E, 0..2N)
func dailyResult(t *testing.T, source string, lat, lon, val []float64) *gridding.DailyResult {
	t.Helper()
	spec := testSpec(t)

	q := make([]int, len(val))
	grid, stats, err := gridding.GridSwath(&gridding.Swath{
		Source: source, Lat: lat, Lon: lon, Value: val, Quality: q,
	}, spec, gridding.QualityThreshold{FillValue: gridding.FillValue})
	require.NoError(t, err)

	agg := gridding.NewAggregator(spec, gridding.AggregatorOptions{MinSamples: 1, Filter: "quality>=0"})
	require.NoError(t, agg.Add(source, grid, stats))
	res, err := agg.Finalize(testDay)
	require.NoError(t, err)
	return res
}

func testSpec(t *testing.T) gridding.Spec {
	t.Helper()
	spec, err := gridding.NewSpec(1, 0, 3, 0, 2)
	require.NoError(t, err)
	return spec
}

// testDataset has DB data in the NW cell and DT data in the SE cell
func testDataset(t *testing.T) *Dataset {
	t.Helper()
	db := dailyResult(t, "db.nc", []float64{1.5, 1.5}, []float64{0.5, 0.5}, []float64{0.2, 0.4})
	dt := dailyResult(t, "dt.nc", []float64{0.5}, []float64{2.5}, []float64{0.6})

	blend, err := combine.FromResults(db, dt)
	require.NoError(t, err)

	return NewDataset(testDay, testSpec(t), []ProductResult{
		{Name: "DB", Result: db},
		{Name: "DT", Result: dt},
	}, &blend, "DB", "DT", testMeta)
}
