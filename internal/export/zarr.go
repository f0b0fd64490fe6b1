package export

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/aodgrid/internal/gridding"
	"github.com/wonny/aodgrid/pkg/logger"
)

// DefaultZarrChunk is the default chunk edge (cells) along latitude and longitude
const DefaultZarrChunk = 360

// zarrArray is the .zarray document (Zarr v2)
type zarrArray struct {
	Chunks     []int          `json:"chunks"`
	Compressor map[string]any `json:"compressor"`
	DType      string         `json:"dtype"`
	FillValue  any            `json:"fill_value"`
	Filters    any            `json:"filters"`
	Order      string         `json:"order"`
	Shape      []int          `json:"shape"`
	ZarrFormat int            `json:"zarr_format"`
}

// ZarrWriter writes a Zarr v2 store with zstd-compressed chunks and
// consolidated metadata (.zmetadata) readable by xarray
type ZarrWriter struct {
	chunk  int
	level  zstd.EncoderLevel
	logger *logger.Logger
}

// NewZarrWriter creates a Zarr writer; chunk <= 0 uses DefaultZarrChunk
func NewZarrWriter(chunk int, log *logger.Logger) *ZarrWriter {
	if chunk <= 0 {
		chunk = DefaultZarrChunk
	}
	return &ZarrWriter{chunk: chunk, level: zstd.SpeedDefault, logger: log}
}

// Format implements Writer
func (w *ZarrWriter) Format() string { return FormatZarr }

// Extension implements Writer
func (w *ZarrWriter) Extension() string { return ".zarr" }

// Write implements Writer. The store is built in a sibling temp directory and
// renamed into place, replacing an existing store.
func (w *ZarrWriter) Write(ctx context.Context, ds *Dataset, path string) error {
	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.MkdirTemp(parent, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}
	defer os.RemoveAll(tmp)

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(w.level))
	if err != nil {
		return fmt.Errorf("zstd encoder: %w", err)
	}
	defer enc.Close()

	meta := make(map[string]any)
	if err := w.writeStore(ctx, tmp, ds, enc, meta); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(tmp, ".zmetadata"), map[string]any{
		"metadata":                 meta,
		"zarr_consolidated_format": 1,
	}); err != nil {
		return err
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove old store: %w", err)
	}
	return os.Rename(tmp, path)
}

func (w *ZarrWriter) writeStore(ctx context.Context, root string, ds *Dataset, enc *zstd.Encoder, meta map[string]any) error {
	rows, cols := ds.Spec.Rows(), ds.Spec.Cols()

	group := map[string]any{"zarr_format": 2}
	attrs := make(map[string]any, len(ds.Attributes))
	for _, a := range ds.Attributes {
		attrs[a.Key] = a.Value
	}
	if err := w.putMeta(root, "", ".zgroup", group, meta); err != nil {
		return err
	}
	if err := w.putMeta(root, "", ".zattrs", attrs, meta); err != nil {
		return err
	}

	// === 좌표 (단일 chunk) ===
	if err := w.writeCoord(root, "Time", "<f8", []float64{DaysSinceEpoch(ds.Date)}, map[string]any{
		"long_name": "time", "units": TimeUnits, "calendar": "standard",
	}, enc, meta); err != nil {
		return err
	}
	if err := w.writeCoord(root, "Latitude", "<f8", ds.Spec.Latitudes(), map[string]any{
		"long_name": "latitude", "units": "degrees_north",
	}, enc, meta); err != nil {
		return err
	}
	if err := w.writeCoord(root, "Longitude", "<f8", ds.Spec.Longitudes(), map[string]any{
		"long_name": "longitude", "units": "degrees_east",
	}, enc, meta); err != nil {
		return err
	}

	// === 격자 레이어 ===
	for _, l := range ds.Layers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.writeLayer(ctx, root, l, rows, cols, enc, meta); err != nil {
			return fmt.Errorf("layer %s: %w", l.Name, err)
		}
	}
	return nil
}

func (w *ZarrWriter) compressor() map[string]any {
	return map[string]any{"id": "zstd", "level": 3}
}

func (w *ZarrWriter) writeCoord(root, name, dtype string, values []float64, attrs map[string]any, enc *zstd.Encoder, meta map[string]any) error {
	attrs["_ARRAY_DIMENSIONS"] = []string{name}
	arr := zarrArray{
		Chunks:     []int{len(values)},
		Compressor: w.compressor(),
		DType:      dtype,
		FillValue:  nil,
		Order:      "C",
		Shape:      []int{len(values)},
		ZarrFormat: 2,
	}
	if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
		return err
	}
	if err := w.putMeta(root, name, ".zarray", arr, meta); err != nil {
		return err
	}
	if err := w.putMeta(root, name, ".zattrs", attrs, meta); err != nil {
		return err
	}

	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return os.WriteFile(filepath.Join(root, name, "0"), enc.EncodeAll(buf, nil), 0o644)
}

func (w *ZarrWriter) writeLayer(ctx context.Context, root string, l Layer, rows, cols int, enc *zstd.Encoder, meta map[string]any) error {
	dir := filepath.Join(root, l.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	arr := zarrArray{
		Chunks:     []int{1, min(w.chunk, rows), min(w.chunk, cols)},
		Compressor: w.compressor(),
		Order:      "C",
		Shape:      []int{1, rows, cols},
		ZarrFormat: 2,
	}
	attrs := map[string]any{
		"_ARRAY_DIMENSIONS": gridDims,
		"long_name":         l.LongName,
		"units":             l.Units,
	}
	if l.IsCount() {
		arr.DType = "<i4"
		arr.FillValue = nil
	} else {
		arr.DType = "<f4"
		arr.FillValue = gridding.FillValue
		if l.HasRange {
			attrs["valid_range"] = []float32{l.ValidMin, l.ValidMax}
		}
	}
	if err := w.putMeta(root, l.Name, ".zarray", arr, meta); err != nil {
		return err
	}
	if err := w.putMeta(root, l.Name, ".zattrs", attrs, meta); err != nil {
		return err
	}

	chunkRows, chunkCols := arr.Chunks[1], arr.Chunks[2]
	nr := (rows + chunkRows - 1) / chunkRows
	nc := (cols + chunkCols - 1) / chunkCols

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for cr := 0; cr < nr; cr++ {
		for cc := 0; cc < nc; cc++ {
			cr, cc := cr, cc
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				raw := encodeChunk(l, rows, cols, cr*chunkRows, cc*chunkCols, chunkRows, chunkCols)
				name := fmt.Sprintf("0.%d.%d", cr, cc)
				return os.WriteFile(filepath.Join(dir, name), enc.EncodeAll(raw, nil), 0o644)
			})
		}
	}
	return g.Wait()
}

// encodeChunk serializes one full chunk; cells past the grid edge are padded
// with the fill value (zero for counts)
func encodeChunk(l Layer, rows, cols, row0, col0, chunkRows, chunkCols int) []byte {
	buf := make([]byte, 4*chunkRows*chunkCols)
	pad := math.Float32bits(gridding.FillValue)
	for r := 0; r < chunkRows; r++ {
		for c := 0; c < chunkCols; c++ {
			off := 4 * (r*chunkCols + c)
			gr, gc := row0+r, col0+c
			inside := gr < rows && gc < cols
			switch {
			case l.IsCount() && inside:
				binary.LittleEndian.PutUint32(buf[off:], uint32(l.Counts[gr*cols+gc]))
			case l.IsCount():
				// zero
			case inside:
				binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(l.Floats[gr*cols+gc]))
			default:
				binary.LittleEndian.PutUint32(buf[off:], pad)
			}
		}
	}
	return buf
}

// putMeta writes a metadata document and records it for .zmetadata
func (w *ZarrWriter) putMeta(root, array, name string, doc any, meta map[string]any) error {
	key := name
	if array != "" {
		key = array + "/" + name
	}
	meta[key] = doc
	return writeJSON(filepath.Join(root, filepath.FromSlash(key)), doc)
}

func writeJSON(path string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}
