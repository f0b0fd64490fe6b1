package swath

import (
	"fmt"
	"math"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// toFloat64s flattens a decoded variable of any rank in row-major order
func toFloat64s(v interface{}) ([]float64, error) {
	// 빠른 경로: L2 변수 대부분
	switch x := v.(type) {
	case []float32:
		return flat1(x), nil
	case [][]float32:
		return flat2(x), nil
	case []float64:
		return append([]float64(nil), x...), nil
	case [][]int16:
		return flat2(x), nil
	}

	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("unsupported variable type %T", v)
	}
	var out []float64
	if err := flatten(rv, &out); err != nil {
		return nil, fmt.Errorf("unsupported variable type %T: %w", v, err)
	}
	return out, nil
}

func flatten(rv reflect.Value, out *[]float64) error {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := flatten(rv.Index(i), out); err != nil {
				return err
			}
		}
		return nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		*out = append(*out, float64(rv.Int()))
		return nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		*out = append(*out, float64(rv.Uint()))
		return nil
	case reflect.Float32, reflect.Float64:
		*out = append(*out, rv.Float())
		return nil
	}
	return fmt.Errorf("element kind %s", rv.Kind())
}

func flat1[T ~float32 | ~int16](v []T) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func flat2[T ~float32 | ~int16](v [][]T) []float64 {
	n := 0
	for _, row := range v {
		n += len(row)
	}
	out := make([]float64, 0, n)
	for _, row := range v {
		for _, x := range row {
			out = append(out, float64(x))
		}
	}
	return out
}

// scalar reads a numeric attribute stored either as a scalar or a one-element array
func scalar(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case int8:
		return float64(x), true
	case uint8:
		return float64(x), true
	case int16:
		return float64(x), true
	case uint16:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint32:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	vals, err := toFloat64s(v)
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

// packing holds the CF packing attributes of a variable
type packing struct {
	scale     float64
	offset    float64
	fill      float64
	hasFill   bool
	validMin  float64
	validMax  float64
	hasBounds bool
}

func readPacking(attrs api.AttributeMap) packing {
	p := packing{scale: 1}
	if attrs == nil {
		return p
	}
	if v, ok := attrs.Get("scale_factor"); ok {
		if s, ok := scalar(v); ok {
			p.scale = s
		}
	}
	if v, ok := attrs.Get("add_offset"); ok {
		if o, ok := scalar(v); ok {
			p.offset = o
		}
	}
	// _FillValue 우선, 없으면 CF missing_value
	for _, key := range []string{"_FillValue", "missing_value"} {
		if v, ok := attrs.Get(key); ok {
			p.fill, p.hasFill = scalar(v)
			break
		}
	}
	if v, ok := attrs.Get("valid_range"); ok {
		if r, err := toFloat64s(v); err == nil && len(r) == 2 {
			p.validMin, p.validMax, p.hasBounds = r[0], r[1], true
		}
	}
	return p
}

// apply unpacks raw values in place. Fill and out-of-valid_range raw values
// become NaN; the gridding filters reject NaN.
func (p packing) apply(raw []float64) {
	for i, v := range raw {
		if p.hasFill && v == p.fill {
			raw[i] = math.NaN()
			continue
		}
		if p.hasBounds && (v < p.validMin || v > p.validMax) {
			raw[i] = math.NaN()
			continue
		}
		raw[i] = v*p.scale + p.offset
	}
}
