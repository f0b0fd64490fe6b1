// Package export writes finalized daily grids as L3 granules (NetCDF or Zarr).
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/wonny/aodgrid/internal/combine"
	"github.com/wonny/aodgrid/internal/gridding"
)

// TimeEpoch is the origin of the Time coordinate (days since)
var TimeEpoch = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

// TimeUnits is the CF units string of the Time coordinate
const TimeUnits = "days since 1990-01-01 00:00:00"

const quantity = "AOD_550"

// Layer is one (Time, Latitude, Longitude) variable. Exactly one of
// Floats or Counts is set.
type Layer struct {
	Name     string
	LongName string
	Units    string
	Floats   []float32
	Counts   []int32
	HasRange bool
	ValidMin float32
	ValidMax float32
}

// IsCount reports whether the layer holds integer pixel counts
func (l Layer) IsCount() bool { return l.Counts != nil }

// Attribute is an ordered global attribute
type Attribute struct {
	Key   string
	Value interface{}
}

// Dataset is everything written for one day
type Dataset struct {
	Name       string // granule name without extension
	Date       time.Time
	Spec       gridding.Spec
	Layers     []Layer
	Attributes []Attribute
}

// Layer finds a layer by name
func (d *Dataset) Layer(name string) (Layer, bool) {
	for _, l := range d.Layers {
		if l.Name == name {
			return l, true
		}
	}
	return Layer{}, false
}

// ProductResult is one product's finalized grid. Result is nil when the
// product had no usable input for the day.
type ProductResult struct {
	Name     string
	Result   *gridding.DailyResult
	ValidMin *float64
	ValidMax *float64
}

// Metadata describes the granule being produced
type Metadata struct {
	ShortName  string // e.g. AER_DBDT_D10KM_L3_VIIRS
	Satellite  string
	Version    string // e.g. 001
	Produced   time.Time
	ConfigHash string
}

// CollectionName returns the short name with the satellite suffix
func (m Metadata) CollectionName() string {
	if m.Satellite == "" {
		return m.ShortName
	}
	return m.ShortName + "_" + m.Satellite
}

// GranuleName builds <SHORT>_<SAT>.<YYYYDDD>.V<ver>.<YYYYDDDHHMMSS>
func GranuleName(meta Metadata, date time.Time) string {
	return fmt.Sprintf("%s.%d%03d.V%s.%d%03d%s",
		meta.CollectionName(),
		date.Year(), date.YearDay(),
		meta.Version,
		meta.Produced.Year(), meta.Produced.YearDay(), meta.Produced.Format("150405"),
	)
}

// DaysSinceEpoch converts a date to the Time coordinate value
func DaysSinceEpoch(date time.Time) float64 {
	return date.Sub(TimeEpoch).Hours() / 24
}

// CombinedName is the blended layer name, e.g. DB_DT_AOD_550_AVG
func CombinedName(first, second string) string {
	return fmt.Sprintf("%s_%s_%s_AVG", first, second, quantity)
}

// CombineAverageName is the averaged blend layer
const CombineAverageName = "COMBINE_" + quantity + "_AVG"

// ZenithName is the mean sensor zenith angle layer
const ZenithName = "Sensor_Zenith_Angle"

// NewDataset assembles the layers and metadata of one day
// ⭐ SSOT: 출력 변수 구성은 이 함수에서만
//
// primary and secondary name the products blended into blend; blend may be nil.
func NewDataset(date time.Time, spec gridding.Spec, products []ProductResult, blend *combine.Layers, primary, secondary string, meta Metadata) *Dataset {
	ds := &Dataset{
		Name: GranuleName(meta, date),
		Date: date,
		Spec: spec,
	}

	var zenith []float32
	var inputs []string
	var filters []string
	minSamples := 0

	for _, p := range products {
		res := p.Result
		if res == nil {
			res = emptyResult(date, spec)
		} else {
			inputs = append(inputs, res.Manifest.Succeeded...)
			filters = append(filters, fmt.Sprintf("%s: %s", p.Name, res.Filter))
			if res.MinSamples > minSamples {
				minSamples = res.MinSamples
			}
			if zenith == nil && combine.Filled(res.Zenith) > 0 {
				zenith = res.Zenith
			}
		}

		avg := Layer{
			Name:     fmt.Sprintf("%s_%s_AVG", p.Name, quantity),
			LongName: fmt.Sprintf("%s aerosol optical depth at 550 nm, daily mean", p.Name),
			Units:    "1",
			Floats:   res.Mean,
		}
		if p.ValidMin != nil && p.ValidMax != nil {
			avg.HasRange = true
			avg.ValidMin, avg.ValidMax = float32(*p.ValidMin), float32(*p.ValidMax)
		}

		ds.Layers = append(ds.Layers,
			avg,
			Layer{
				Name:     fmt.Sprintf("%s_%s_STD", p.Name, quantity),
				LongName: fmt.Sprintf("%s aerosol optical depth at 550 nm, standard deviation", p.Name),
				Units:    "1",
				Floats:   res.StdDev,
			},
			Layer{
				Name:     fmt.Sprintf("%s_%s_MIN", p.Name, quantity),
				LongName: fmt.Sprintf("%s aerosol optical depth at 550 nm, minimum", p.Name),
				Units:    "1",
				Floats:   res.Min,
			},
			Layer{
				Name:     fmt.Sprintf("%s_%s_MAX", p.Name, quantity),
				LongName: fmt.Sprintf("%s aerosol optical depth at 550 nm, maximum", p.Name),
				Units:    "1",
				Floats:   res.Max,
			},
			Layer{
				Name:     fmt.Sprintf("%s_Number_Of_Pixels", p.Name),
				LongName: fmt.Sprintf("%s number of accepted pixels", p.Name),
				Units:    "1",
				Counts:   res.Count,
			},
		)
	}

	if blend != nil {
		ds.Layers = append(ds.Layers,
			Layer{
				Name:     CombinedName(primary, secondary),
				LongName: fmt.Sprintf("%s preferred, %s where missing", primary, secondary),
				Units:    "1",
				Floats:   blend.PrimaryFirst,
			},
			Layer{
				Name:     CombinedName(secondary, primary),
				LongName: fmt.Sprintf("%s preferred, %s where missing", secondary, primary),
				Units:    "1",
				Floats:   blend.SecondaryFirst,
			},
			Layer{
				Name:     CombineAverageName,
				LongName: fmt.Sprintf("average of %s and %s where both present", primary, secondary),
				Units:    "1",
				Floats:   blend.Average,
			},
		)
	}

	if zenith == nil {
		zenith = emptyResult(date, spec).Zenith
	}
	ds.Layers = append(ds.Layers, Layer{
		Name:     ZenithName,
		LongName: "mean sensor zenith angle of accepted pixels",
		Units:    "degrees",
		Floats:   zenith,
		HasRange: true,
		ValidMin: 0,
		ValidMax: 90,
	})

	ds.Attributes = []Attribute{
		{"title", fmt.Sprintf("VIIRS %s daily L3 aerosol optical depth", meta.Satellite)},
		{"Conventions", "CF-1.6"},
		{"ShortName", meta.CollectionName()},
		{"VersionID", meta.Version},
		{"Satellite", meta.Satellite},
		{"RangeBeginningDate", date.Format("2006-01-02")},
		{"RangeBeginningTime", "00:00:00.000000"},
		{"RangeEndingDate", date.Format("2006-01-02")},
		{"RangeEndingTime", "23:59:59.999999"},
		{"ProductionTime", meta.Produced.UTC().Format(time.RFC3339)},
		{"geospatial_lat_resolution", spec.Resolution},
		{"geospatial_lon_resolution", spec.Resolution},
		{"geospatial_lat_min", spec.MinLat},
		{"geospatial_lat_max", spec.MaxLat},
		{"geospatial_lon_min", spec.MinLon},
		{"geospatial_lon_max", spec.MaxLon},
		{"min_samples", int32(minSamples)},
		{"quality_filter", strings.Join(filters, "; ")},
		{"number_of_input_files", int32(len(inputs))},
		{"input_files", strings.Join(inputs, ",")},
		{"config_hash", meta.ConfigHash},
	}

	return ds
}

// emptyResult is an all-missing layer set for a product with no input
func emptyResult(date time.Time, spec gridding.Spec) *gridding.DailyResult {
	res, _ := gridding.NewAggregator(spec, gridding.AggregatorOptions{}).Finalize(date)
	return res
}

// cube reshapes a row-major layer into (1, rows, cols)
func cube[T float32 | int32](vals []T, rows, cols int) [][][]T {
	plane := make([][]T, rows)
	for r := 0; r < rows; r++ {
		plane[r] = vals[r*cols : (r+1)*cols]
	}
	return [][][]T{plane}
}

func toFloat32(vals []float64) []float32 {
	out := make([]float32, len(vals))
	for i, v := range vals {
		out[i] = float32(v)
	}
	return out
}
