package swath

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/wonny/aodgrid/internal/gridding"
	"github.com/wonny/aodgrid/pkg/logger"
)

// ErrVariableNotFound is returned when a configured variable path does not exist
var ErrVariableNotFound = errors.New("variable not found")

// Variables maps the logical swath fields to variable paths inside one L2 file.
// Paths may contain groups: "geolocation_data/latitude".
type Variables struct {
	Value     string
	Latitude  string
	Longitude string
	Zenith    string // optional
	Quality   string // optional; DefaultQuality is used when empty

	DefaultQuality int
}

// Reader decodes one L2 file into a swath
type Reader interface {
	Read(ctx context.Context, path string, vars Variables) (*gridding.Swath, error)
}

// NetCDFReader reads NetCDF-4/HDF5 (and classic NetCDF) L2 files
// ⭐ SSOT: L2 파일 디코딩은 이 리더를 통해서만
type NetCDFReader struct {
	logger *logger.Logger
}

// NewNetCDFReader creates a reader
func NewNetCDFReader(log *logger.Logger) *NetCDFReader {
	return &NetCDFReader{logger: log}
}

// Read opens path and extracts the configured variables.
// The swath Source is the file's base name.
func (r *NetCDFReader) Read(ctx context.Context, path string, vars Variables) (*gridding.Swath, error) {
	source := filepath.Base(path)

	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, &gridding.MalformedInputError{Source: source, Reason: fmt.Sprintf("open: %v", err)}
	}
	defer nc.Close()

	s := &gridding.Swath{Source: source}

	required := []struct {
		name string
		path string
		dst  *[]float64
	}{
		{"value", vars.Value, &s.Value},
		{"latitude", vars.Latitude, &s.Lat},
		{"longitude", vars.Longitude, &s.Lon},
	}
	for _, v := range required {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vals, err := readVariable(nc, v.path)
		if err != nil {
			return nil, &gridding.MalformedInputError{Source: source, Reason: fmt.Sprintf("%s: %v", v.name, err)}
		}
		*v.dst = vals
	}

	if vars.Quality != "" {
		q, err := readVariable(nc, vars.Quality)
		if err != nil {
			return nil, &gridding.MalformedInputError{Source: source, Reason: fmt.Sprintf("quality: %v", err)}
		}
		s.Quality = toFlags(q)
	} else {
		s.Quality = constantFlags(len(s.Value), vars.DefaultQuality)
	}

	if vars.Zenith != "" {
		z, err := readVariable(nc, vars.Zenith)
		if err != nil {
			// 기하 정보는 보조 레이어: 없으면 경고만
			r.logger.WithFields(map[string]interface{}{
				"source":   source,
				"variable": vars.Zenith,
			}).WithError(err).Warn("Zenith layer unavailable, skipping")
		} else {
			s.Zenith = z
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	r.logger.WithFields(map[string]interface{}{
		"source": source,
		"pixels": s.Len(),
	}).Debug("Swath decoded")

	return s, nil
}

// readVariable resolves a group path and returns unpacked values
func readVariable(root api.Group, path string) ([]float64, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	g := root
	for _, name := range parts[:len(parts)-1] {
		sub, err := g.GetGroup(name)
		if err != nil {
			return nil, fmt.Errorf("%w: group %q in %q", ErrVariableNotFound, name, path)
		}
		g = sub
	}

	v, err := g.GetVariable(parts[len(parts)-1])
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrVariableNotFound, path)
	}

	vals, err := toFloat64s(v.Values)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, err)
	}
	readPacking(v.Attributes).apply(vals)
	return vals, nil
}

// missingFlag marks pixels whose QA value is fill
const missingFlag = -1

// toFlags rounds QA values to integer flags
func toFlags(vals []float64) []int {
	out := make([]int, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) {
			out[i] = missingFlag
			continue
		}
		out[i] = int(math.Round(v))
	}
	return out
}

func constantFlags(n, flag int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = flag
	}
	return out
}
