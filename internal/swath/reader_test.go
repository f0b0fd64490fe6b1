package swath

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aodgrid/internal/gridding"
	"github.com/wonny/aodgrid/pkg/logger"
)

func attrs(t *testing.T, kv map[string]interface{}) api.AttributeMap {
	t.Helper()
	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	m, err := util.NewOrderedMap(keys, kv)
	require.NoError(t, err)
	return m
}

// writeGranule writes a small classic NetCDF file with packed AOD values
func writeGranule(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "AERDB_L2_VIIRS_SNPP.A2024001.0000.002.nc")

	w, err := cdf.OpenWriter(path)
	require.NoError(t, err)

	dims := []string{"Idx_Atrack", "Idx_Xtrack"}
	require.NoError(t, w.AddVar("Latitude", api.Variable{
		Values:     [][]float32{{10.05, 10.05}, {10.15, 10.15}},
		Dimensions: dims,
		Attributes: attrs(t, nil),
	}))
	require.NoError(t, w.AddVar("Longitude", api.Variable{
		Values:     [][]float32{{20.05, 20.15}, {20.05, 20.15}},
		Dimensions: dims,
		Attributes: attrs(t, nil),
	}))
	require.NoError(t, w.AddVar("AOD", api.Variable{
		Values:     [][]int16{{100, 200}, {-9999, 300}},
		Dimensions: dims,
		Attributes: attrs(t, map[string]interface{}{
			"scale_factor":  float64(0.001),
			"missing_value": int16(-9999),
		}),
	}))
	require.NoError(t, w.AddVar("QA", api.Variable{
		Values:     [][]int8{{3, 1}, {3, 2}},
		Dimensions: dims,
		Attributes: attrs(t, nil),
	}))
	require.NoError(t, w.Close())
	return path
}

func TestNetCDFReader_Read(t *testing.T) {
	path := writeGranule(t)
	r := NewNetCDFReader(logger.Nop())

	s, err := r.Read(context.Background(), path, Variables{
		Value:     "AOD",
		Latitude:  "Latitude",
		Longitude: "Longitude",
		Quality:   "QA",
	})
	require.NoError(t, err)

	assert.Equal(t, "AERDB_L2_VIIRS_SNPP.A2024001.0000.002.nc", s.Source)
	require.Equal(t, 4, s.Len())
	assert.InDelta(t, 0.1, s.Value[0], 1e-9)
	assert.InDelta(t, 0.2, s.Value[1], 1e-9)
	assert.True(t, math.IsNaN(s.Value[2]), "fill value unpacks to NaN")
	assert.InDelta(t, 0.3, s.Value[3], 1e-9)
	assert.Equal(t, []int{3, 1, 3, 2}, s.Quality)
	assert.Nil(t, s.Zenith)
}

func TestNetCDFReader_DefaultQualityAndMissingZenith(t *testing.T) {
	path := writeGranule(t)
	r := NewNetCDFReader(logger.Nop())

	s, err := r.Read(context.Background(), path, Variables{
		Value:          "AOD",
		Latitude:       "Latitude",
		Longitude:      "Longitude",
		Zenith:         "Viewing_Zenith_Angle",
		DefaultQuality: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 3, 3}, s.Quality)
	assert.Nil(t, s.Zenith, "missing zenith layer is skipped")
}

func TestNetCDFReader_MissingVariable(t *testing.T) {
	path := writeGranule(t)
	r := NewNetCDFReader(logger.Nop())

	_, err := r.Read(context.Background(), path, Variables{
		Value:     "geophysical_data/Optical_Depth_Land_And_Ocean",
		Latitude:  "Latitude",
		Longitude: "Longitude",
	})
	require.Error(t, err)
	assert.True(t, gridding.IsMalformedInput(err))
}

func TestNetCDFReader_NotNetCDF(t *testing.T) {
	r := NewNetCDFReader(logger.Nop())
	_, err := r.Read(context.Background(), filepath.Join(t.TempDir(), "missing.nc"), Variables{})
	require.Error(t, err)
	assert.True(t, gridding.IsMalformedInput(err))
}

func TestToFloat64s(t *testing.T) {
	got, err := toFloat64s([][]int16{{1, 2}, {3}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, got)

	got, err = toFloat64s([][][]float32{{{1}}, {{2, 3}}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, got)

	_, err = toFloat64s("text")
	assert.Error(t, err)
}

func TestToFloat64s_ThreeDimensionalIntegers(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
	}{
		{"int8", [][][]int8{{{1, 2}}, {{3}}}},
		{"uint8", [][][]uint8{{{1, 2}}, {{3}}}},
		{"uint16", [][][]uint16{{{1, 2}}, {{3}}}},
		{"int32", [][][]int32{{{1, 2}}, {{3}}}},
		{"uint32", [][][]uint32{{{1, 2}}, {{3}}}},
		{"int64", [][][]int64{{{1, 2}}, {{3}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toFloat64s(tt.in)
			require.NoError(t, err)
			assert.Equal(t, []float64{1, 2, 3}, got)
		})
	}

	_, err := toFloat64s([][]string{{"a"}})
	assert.Error(t, err)
}

func TestNetCDFReader_ThreeDimensionalQuality(t *testing.T) {
	path := filepath.Join(t.TempDir(), "AERDT_L2_VIIRS_SNPP.A2024001.0000.002.nc")

	w, err := cdf.OpenWriter(path)
	require.NoError(t, err)
	dims := []string{"Land_Ocean", "Idx_Atrack", "Idx_Xtrack"}
	require.NoError(t, w.AddVar("lat", api.Variable{
		Values:     [][][]float32{{{10.05, 10.15}}},
		Dimensions: dims,
		Attributes: attrs(t, nil),
	}))
	require.NoError(t, w.AddVar("lon", api.Variable{
		Values:     [][][]float32{{{20.05, 20.15}}},
		Dimensions: dims,
		Attributes: attrs(t, nil),
	}))
	require.NoError(t, w.AddVar("aod", api.Variable{
		Values:     [][][]float32{{{0.25, 0.5}}},
		Dimensions: dims,
		Attributes: attrs(t, nil),
	}))
	require.NoError(t, w.AddVar("qa", api.Variable{
		Values:     [][][]int32{{{3, 2}}},
		Dimensions: dims,
		Attributes: attrs(t, nil),
	}))
	require.NoError(t, w.Close())

	s, err := NewNetCDFReader(logger.Nop()).Read(context.Background(), path, Variables{
		Value:     "aod",
		Latitude:  "lat",
		Longitude: "lon",
		Quality:   "qa",
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.5}, s.Value)
	assert.Equal(t, []int{3, 2}, s.Quality)
}

func TestPackingApply(t *testing.T) {
	p := readPacking(attrs(t, map[string]interface{}{
		"scale_factor": []float32{0.5},
		"add_offset":   float64(1),
		"_FillValue":   int16(-1),
		"valid_range":  []int16{0, 100},
	}))

	vals := []float64{10, -1, 200, 0}
	p.apply(vals)

	assert.Equal(t, 6.0, vals[0])
	assert.True(t, math.IsNaN(vals[1]), "fill")
	assert.True(t, math.IsNaN(vals[2]), "outside valid_range")
	assert.Equal(t, 1.0, vals[3])
}

func TestPackingApply_MissingValue(t *testing.T) {
	p := readPacking(attrs(t, map[string]interface{}{
		"missing_value": float32(-999),
	}))

	vals := []float64{0.4, -999}
	p.apply(vals)

	assert.Equal(t, 0.4, vals[0])
	assert.True(t, math.IsNaN(vals[1]), "missing_value")
}

func TestToFlags(t *testing.T) {
	assert.Equal(t, []int{3, missingFlag, 1}, toFlags([]float64{3, math.NaN(), 0.6}))
}
