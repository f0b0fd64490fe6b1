package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aodgrid/pkg/logger"
)

func TestNetCDFWriter_Write(t *testing.T) {
	ds := testDataset(t)
	w := NewNetCDFWriter(logger.Nop())
	path := filepath.Join(t.TempDir(), "out", ds.Name+w.Extension())

	require.NoError(t, w.Write(context.Background(), ds, path))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file renamed")

	nc, err := netcdf.Open(path)
	require.NoError(t, err)
	defer nc.Close()

	v, err := nc.GetVariable("DB_AOD_550_AVG")
	require.NoError(t, err)
	assert.Equal(t, []string{"Time", "Latitude", "Longitude"}, v.Dimensions)

	cube, ok := v.Values.([][][]float32)
	require.True(t, ok, "got %T", v.Values)
	require.Len(t, cube, 1)
	require.Len(t, cube[0], 2)
	assert.InDelta(t, 0.3, cube[0][0][0], 1e-6)
	assert.Equal(t, float32(-999), cube[0][1][0], "missing cell")

	missing, ok := v.Attributes.Get("missing_value")
	require.True(t, ok, "missing_value attribute")
	assert.Equal(t, float32(-999), missing)

	n, err := nc.GetVariable("DB_Number_Of_Pixels")
	require.NoError(t, err)
	_, hasMissing := n.Attributes.Get("missing_value")
	assert.False(t, hasMissing, "count layers carry no missing_value")

	lat, err := nc.GetVariable("Latitude")
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, 0.5}, lat.Values)

	short, ok := nc.Attributes().Get("ShortName")
	require.True(t, ok)
	assert.Equal(t, "AER_DBDT_D10KM_L3_VIIRS_SNPP", short)
}

func TestNewWriter(t *testing.T) {
	w, err := NewWriter("zarr", 0, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, ".zarr", w.Extension())

	_, err = NewWriter("hdf4", 0, logger.Nop())
	assert.Error(t, err)
}

func TestWriteAll(t *testing.T) {
	ds := testDataset(t)
	dir := t.TempDir()

	writers := []Writer{NewNetCDFWriter(logger.Nop()), NewZarrWriter(1, logger.Nop())}
	paths, err := WriteAll(context.Background(), dir, ds, writers, logger.Nop())
	require.NoError(t, err)
	require.Len(t, paths, 2)

	assert.Equal(t, filepath.Join(dir, "2024", "001", ds.Name+".nc"), paths[0])
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}
}
