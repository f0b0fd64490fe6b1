package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aodgrid/internal/gridding"
)

func TestGranuleName(t *testing.T) {
	assert.Equal(t,
		"AER_DBDT_D10KM_L3_VIIRS_SNPP.2024001.V001.2024015123456",
		GranuleName(testMeta, testDay))
}

func TestDaysSinceEpoch(t *testing.T) {
	assert.Equal(t, 0.0, DaysSinceEpoch(TimeEpoch))
	assert.Equal(t, 12418.0, DaysSinceEpoch(testDay))
}

func TestNewDataset_Layers(t *testing.T) {
	ds := testDataset(t)

	names := make([]string, len(ds.Layers))
	for i, l := range ds.Layers {
		names[i] = l.Name
	}
	assert.Equal(t, []string{
		"DB_AOD_550_AVG", "DB_AOD_550_STD", "DB_AOD_550_MIN", "DB_AOD_550_MAX", "DB_Number_Of_Pixels",
		"DT_AOD_550_AVG", "DT_AOD_550_STD", "DT_AOD_550_MIN", "DT_AOD_550_MAX", "DT_Number_Of_Pixels",
		"DB_DT_AOD_550_AVG", "DT_DB_AOD_550_AVG", "COMBINE_AOD_550_AVG",
		"Sensor_Zenith_Angle",
	}, names)

	avg, ok := ds.Layer("DB_AOD_550_AVG")
	require.True(t, ok)
	assert.InDelta(t, 0.3, avg.Floats[0], 1e-6)

	count, ok := ds.Layer("DB_Number_Of_Pixels")
	require.True(t, ok)
	assert.True(t, count.IsCount())
	assert.Equal(t, int32(2), count.Counts[0])

	// row 1 (south), col 2 (east) = offset 5
	combined, ok := ds.Layer("COMBINE_AOD_550_AVG")
	require.True(t, ok)
	assert.InDelta(t, 0.3, combined.Floats[0], 1e-6)
	assert.InDelta(t, 0.6, combined.Floats[5], 1e-6)
	assert.Equal(t, float32(gridding.FillValue), combined.Floats[1])
}

func TestNewDataset_MissingProduct(t *testing.T) {
	db := dailyResult(t, "db.nc", []float64{1.5}, []float64{0.5}, []float64{0.2})

	ds := NewDataset(testDay, testSpec(t), []ProductResult{
		{Name: "DB", Result: db},
		{Name: "DT", Result: nil},
	}, nil, "", "", testMeta)

	dt, ok := ds.Layer("DT_AOD_550_AVG")
	require.True(t, ok)
	for _, v := range dt.Floats {
		assert.Equal(t, float32(gridding.FillValue), v)
	}
	_, ok = ds.Layer(CombineAverageName)
	assert.False(t, ok)

	attrs := map[string]interface{}{}
	for _, a := range ds.Attributes {
		attrs[a.Key] = a.Value
	}
	assert.Equal(t, int32(1), attrs["number_of_input_files"])
	assert.Equal(t, "db.nc", attrs["input_files"])
	assert.Equal(t, "2024-01-01", attrs["RangeBeginningDate"])
}
