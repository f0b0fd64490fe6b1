package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	"github.com/wonny/aodgrid/internal/gridding"
	"github.com/wonny/aodgrid/pkg/logger"
)

var gridDims = []string{"Time", "Latitude", "Longitude"}

// NetCDFWriter writes classic NetCDF granules
type NetCDFWriter struct {
	logger *logger.Logger
}

// NewNetCDFWriter creates a NetCDF writer
func NewNetCDFWriter(log *logger.Logger) *NetCDFWriter {
	return &NetCDFWriter{logger: log}
}

// Format implements Writer
func (w *NetCDFWriter) Format() string { return FormatNetCDF }

// Extension implements Writer
func (w *NetCDFWriter) Extension() string { return ".nc" }

// Write implements Writer. The file appears at path only when complete.
func (w *NetCDFWriter) Write(ctx context.Context, ds *Dataset, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp := path + ".tmp"
	_ = os.Remove(tmp)

	cw, err := cdf.OpenWriter(tmp)
	if err != nil {
		return fmt.Errorf("open %s: %w", tmp, err)
	}

	if err := w.writeAll(ctx, cw, ds); err != nil {
		cw.Close()
		os.Remove(tmp)
		return err
	}
	if err := cw.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

func (w *NetCDFWriter) writeAll(ctx context.Context, cw api.Writer, ds *Dataset) error {
	rows, cols := ds.Spec.Rows(), ds.Spec.Cols()

	// === 좌표 변수 ===
	coords := []struct {
		name   string
		values interface{}
		attrs  map[string]interface{}
	}{
		{"Time", []float64{DaysSinceEpoch(ds.Date)}, map[string]interface{}{
			"long_name": "time", "units": TimeUnits, "calendar": "standard",
		}},
		{"Latitude", toFloat32(ds.Spec.Latitudes()), map[string]interface{}{
			"long_name": "latitude", "units": "degrees_north",
		}},
		{"Longitude", toFloat32(ds.Spec.Longitudes()), map[string]interface{}{
			"long_name": "longitude", "units": "degrees_east",
		}},
	}
	for _, c := range coords {
		attrs, err := orderedAttrs(c.attrs, "long_name", "units", "calendar")
		if err != nil {
			return err
		}
		if err := cw.AddVar(c.name, api.Variable{
			Values:     c.values,
			Dimensions: []string{c.name},
			Attributes: attrs,
		}); err != nil {
			return fmt.Errorf("add %s: %w", c.name, err)
		}
	}

	// === 격자 레이어 ===
	for _, l := range ds.Layers {
		if err := ctx.Err(); err != nil {
			return err
		}

		vals := map[string]interface{}{
			"long_name": l.LongName,
			"units":     l.Units,
		}
		var values interface{}
		if l.IsCount() {
			values = cube(l.Counts, rows, cols)
		} else {
			values = cube(l.Floats, rows, cols)
			// cdf writer: "_" 접두 속성명은 예약어
			vals["missing_value"] = float32(gridding.FillValue)
			if l.HasRange {
				vals["valid_range"] = []float32{l.ValidMin, l.ValidMax}
			}
		}

		attrs, err := orderedAttrs(vals, "missing_value", "long_name", "units", "valid_range")
		if err != nil {
			return err
		}
		if err := cw.AddVar(l.Name, api.Variable{
			Values:     values,
			Dimensions: gridDims,
			Attributes: attrs,
		}); err != nil {
			return fmt.Errorf("add %s: %w", l.Name, err)
		}
	}

	// === 전역 속성 ===
	keys := make([]string, 0, len(ds.Attributes))
	vals := make(map[string]interface{}, len(ds.Attributes))
	for _, a := range ds.Attributes {
		if s, ok := a.Value.(string); ok && s == "" {
			continue
		}
		keys = append(keys, a.Key)
		vals[a.Key] = a.Value
	}
	global, err := util.NewOrderedMap(keys, vals)
	if err != nil {
		return fmt.Errorf("global attributes: %w", err)
	}
	if err := cw.AddAttributes(global); err != nil {
		return fmt.Errorf("add global attributes: %w", err)
	}
	return nil
}

// orderedAttrs keeps the keys of order that are present in vals
func orderedAttrs(vals map[string]interface{}, order ...string) (api.AttributeMap, error) {
	keys := make([]string, 0, len(vals))
	for _, k := range order {
		if _, ok := vals[k]; ok {
			keys = append(keys, k)
		}
	}
	m, err := util.NewOrderedMap(keys, vals)
	if err != nil {
		return nil, fmt.Errorf("attributes: %w", err)
	}
	return m, nil
}
