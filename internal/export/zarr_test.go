package export

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aodgrid/pkg/logger"
)

func readChunk(t *testing.T, path string) []byte {
	t.Helper()
	compressed, err := os.ReadFile(path)
	require.NoError(t, err)

	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()

	raw, err := dec.DecodeAll(compressed, nil)
	require.NoError(t, err)
	return raw
}

func TestZarrWriter_Write(t *testing.T) {
	ds := testDataset(t)
	w := NewZarrWriter(2, logger.Nop()) // 2x3 grid → chunks of 2x2, last column chunk padded
	path := filepath.Join(t.TempDir(), ds.Name+w.Extension())

	require.NoError(t, w.Write(context.Background(), ds, path))

	data, err := os.ReadFile(filepath.Join(path, "DB_AOD_550_AVG", ".zarray"))
	require.NoError(t, err)
	var arr zarrArray
	require.NoError(t, json.Unmarshal(data, &arr))
	assert.Equal(t, []int{1, 2, 3}, arr.Shape)
	assert.Equal(t, []int{1, 2, 2}, arr.Chunks)
	assert.Equal(t, "<f4", arr.DType)
	assert.Equal(t, -999.0, arr.FillValue)
	assert.Equal(t, "zstd", arr.Compressor["id"])

	// chunk 0.0.0 covers cols 0-1
	raw := readChunk(t, filepath.Join(path, "DB_AOD_550_AVG", "0.0.0"))
	require.Len(t, raw, 16)
	assert.InDelta(t, 0.3, math.Float32frombits(binary.LittleEndian.Uint32(raw[0:])), 1e-6)

	// chunk 0.0.1 covers col 2 plus one padded column
	raw = readChunk(t, filepath.Join(path, "DB_AOD_550_AVG", "0.0.1"))
	assert.Equal(t, float32(-999), math.Float32frombits(binary.LittleEndian.Uint32(raw[4:])))

	counts := readChunk(t, filepath.Join(path, "DB_Number_Of_Pixels", "0.0.0"))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(counts[0:]))

	// consolidated metadata lists every array
	data, err = os.ReadFile(filepath.Join(path, ".zmetadata"))
	require.NoError(t, err)
	var zmeta struct {
		Metadata map[string]json.RawMessage `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(data, &zmeta))
	assert.Contains(t, zmeta.Metadata, ".zgroup")
	assert.Contains(t, zmeta.Metadata, "Latitude/.zarray")
	assert.Contains(t, zmeta.Metadata, "COMBINE_AOD_550_AVG/.zattrs")
}

func TestZarrWriter_ReplacesExisting(t *testing.T) {
	ds := testDataset(t)
	w := NewZarrWriter(0, logger.Nop())
	path := filepath.Join(t.TempDir(), "store.zarr")

	require.NoError(t, os.MkdirAll(filepath.Join(path, "stale"), 0o755))
	require.NoError(t, w.Write(context.Background(), ds, path))

	_, err := os.Stat(filepath.Join(path, "stale"))
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp store cleaned up")
}
