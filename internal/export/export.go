package export

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/wonny/aodgrid/pkg/logger"
)

// Writer serializes a dataset to one output format
type Writer interface {
	Format() string
	Extension() string
	Write(ctx context.Context, ds *Dataset, path string) error
}

// Formats supported by NewWriter
const (
	FormatNetCDF = "netcdf"
	FormatZarr   = "zarr"
)

// NewWriter returns the writer for a format name
func NewWriter(format string, zarrChunk int, log *logger.Logger) (Writer, error) {
	switch format {
	case FormatNetCDF:
		return NewNetCDFWriter(log), nil
	case FormatZarr:
		return NewZarrWriter(zarrChunk, log), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// OutputPath returns <dir>/<YYYY>/<DDD>/<granule><ext>
func OutputPath(dir string, ds *Dataset, w Writer) string {
	return filepath.Join(dir,
		fmt.Sprintf("%d", ds.Date.Year()),
		fmt.Sprintf("%03d", ds.Date.YearDay()),
		ds.Name+w.Extension(),
	)
}

// WriteAll writes ds in every format and returns the written paths
func WriteAll(ctx context.Context, dir string, ds *Dataset, writers []Writer, log *logger.Logger) ([]string, error) {
	paths := make([]string, 0, len(writers))
	for _, w := range writers {
		start := time.Now()
		path := OutputPath(dir, ds, w)
		if err := w.Write(ctx, ds, path); err != nil {
			return paths, fmt.Errorf("write %s: %w", w.Format(), err)
		}
		log.WithFields(map[string]interface{}{
			"format":   w.Format(),
			"path":     path,
			"layers":   len(ds.Layers),
			"duration": time.Since(start),
		}).Info("Granule written")
		paths = append(paths, path)
	}
	return paths, nil
}
