package runconfig

import (
	"fmt"
	"time"

	"github.com/wonny/aodgrid/internal/gridding"
)

// DateLayout is the compact date format used on the command line and in job files
const DateLayout = "20060102"

// Config는 일별 L3 격자화 작업의 전체 설정
type Config struct {
	Grid        Grid            `yaml:"grid" json:"grid"`
	Dates       DateRange       `yaml:"dates" json:"dates"`
	Satellite   string          `yaml:"satellite" json:"satellite" validate:"required,oneof=SNPP NOAA20 NOAA21"`
	Products    []ProductConfig `yaml:"products" json:"products" validate:"required,min=1,dive"`
	Aggregation Aggregation     `yaml:"aggregation" json:"aggregation"`
	Combine     Combine         `yaml:"combine" json:"combine"`
	Workers     Workers         `yaml:"workers" json:"workers"`
	Output      Output          `yaml:"output" json:"output"`
	Schedule    Schedule        `yaml:"schedule" json:"schedule"`
}

// Grid 목표 격자 (도 단위)
type Grid struct {
	Size   float64 `yaml:"size" json:"size" validate:"gt=0,lte=90"`
	MinLon float64 `yaml:"min_lon" json:"min_lon" validate:"gte=-180,lte=180"`
	MaxLon float64 `yaml:"max_lon" json:"max_lon" validate:"gte=-180,lte=180"`
	MinLat float64 `yaml:"min_lat" json:"min_lat" validate:"gte=-90,lte=90"`
	MaxLat float64 `yaml:"max_lat" json:"max_lat" validate:"gte=-90,lte=90"`
}

// DateRange 처리 기간 (YYYYMMDD, 양끝 포함)
type DateRange struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// ProductConfig describes one L2 product and how its pixels are read and filtered
type ProductConfig struct {
	// Name is the short code used in output variable names (DB, DT)
	Name string `yaml:"name" json:"name" validate:"required,alphanum"`
	// Prefix is the archive product prefix; the satellite is appended
	Prefix string `yaml:"prefix" json:"prefix" validate:"required"`

	Value     string `yaml:"value" json:"value" validate:"required"`
	Latitude  string `yaml:"latitude" json:"latitude" validate:"required"`
	Longitude string `yaml:"longitude" json:"longitude" validate:"required"`
	Zenith    string `yaml:"zenith" json:"zenith"`
	// Quality is the QA flag variable; empty means every pixel gets DefaultQuality
	Quality        string `yaml:"quality" json:"quality"`
	DefaultQuality int    `yaml:"default_quality" json:"default_quality"`
	MinQuality     int    `yaml:"min_quality" json:"min_quality"`
	AcceptedFlags  []int  `yaml:"accepted_flags" json:"accepted_flags"`

	ValidMin  *float64 `yaml:"valid_min" json:"valid_min"`
	ValidMax  *float64 `yaml:"valid_max" json:"valid_max"`
	FillValue float64  `yaml:"fill_value" json:"fill_value"`
}

// Aggregation 셀 확정 정책
type Aggregation struct {
	MinSamples int `yaml:"min_samples" json:"min_samples" validate:"gte=0"`
}

// Combine DB/DT 결합 레이어
type Combine struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Primary string `yaml:"primary" json:"primary"`
	Second  string `yaml:"secondary" json:"secondary"`
}

// Workers 병렬도
type Workers struct {
	Days  int `yaml:"days" json:"days" validate:"gte=0,lte=64"`
	Files int `yaml:"files" json:"files" validate:"gte=0,lte=256"`
}

// Output 출력 설정
type Output struct {
	Dir       string   `yaml:"dir" json:"dir" validate:"required"`
	Formats   []string `yaml:"formats" json:"formats" validate:"required,min=1,dive,oneof=netcdf zarr"`
	ShortName string   `yaml:"short_name" json:"short_name" validate:"required"`
	Version   string   `yaml:"version" json:"version" validate:"required,numeric"`
	ZarrChunk int      `yaml:"zarr_chunk" json:"zarr_chunk" validate:"gte=0"`
}

// Schedule 스케줄러 설정
type Schedule struct {
	Cron    string `yaml:"cron" json:"cron"`
	LagDays int    `yaml:"lag_days" json:"lag_days" validate:"gte=0"`
}

// ArchiveName returns the full archive product name, e.g. AERDB_L2_VIIRS_SNPP
func (p ProductConfig) ArchiveName(satellite string) string {
	return fmt.Sprintf("%s_%s", p.Prefix, satellite)
}

// Filter builds the pixel filter for this product
func (p ProductConfig) Filter() gridding.Filter {
	hasRange := p.ValidMin != nil && p.ValidMax != nil
	var lo, hi float64
	if hasRange {
		lo, hi = *p.ValidMin, *p.ValidMax
	}

	threshold := gridding.QualityThreshold{
		MinQuality: p.MinQuality,
		FillValue:  p.FillValue,
		HasRange:   hasRange,
		ValidMin:   lo,
		ValidMax:   hi,
	}
	if len(p.AcceptedFlags) == 0 {
		return threshold
	}
	return gridding.AllOf{threshold, gridding.NewFlagSet(p.FillValue, p.AcceptedFlags...)}
}

// Spec builds the grid specification
func (c *Config) Spec() (gridding.Spec, error) {
	return gridding.NewSpec(c.Grid.Size, c.Grid.MinLon, c.Grid.MaxLon, c.Grid.MinLat, c.Grid.MaxLat)
}

// Product finds a product by short name
func (c *Config) Product(name string) (ProductConfig, bool) {
	for _, p := range c.Products {
		if p.Name == name {
			return p, true
		}
	}
	return ProductConfig{}, false
}

// Days expands the configured date range
func (c *Config) Days() ([]time.Time, error) {
	return DaysBetween(c.Dates.Start, c.Dates.End)
}

// ParseDate parses a YYYYMMDD date in UTC
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYYMMDD): %w", s, err)
	}
	return t, nil
}

// DaysBetween returns every day from start to end inclusive
func DaysBetween(start, end string) ([]time.Time, error) {
	s, err := ParseDate(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return nil, err
	}
	if e.Before(s) {
		return nil, fmt.Errorf("end date %s is before start date %s", end, start)
	}

	var days []time.Time
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days, nil
}

// DayOfYear formats a date as year and zero-padded day of year (2024, "001")
func DayOfYear(t time.Time) (int, string) {
	return t.Year(), fmt.Sprintf("%03d", t.YearDay())
}

func ptr(v float64) *float64 { return &v }

// Default returns the VIIRS Deep Blue + Dark Target daily 0.1° global setup
func Default() *Config {
	return &Config{
		Grid:      Grid{Size: 0.1, MinLon: -180, MaxLon: 180, MinLat: -90, MaxLat: 90},
		Satellite: "SNPP",
		Products: []ProductConfig{
			// Deep Blue "Best_Estimate"는 이미 QA 필터링된 값이므로 QA 변수 없음
			{
				Name:           "DB",
				Prefix:         "AERDB_L2_VIIRS",
				Value:          "Aerosol_Optical_Thickness_550_Land_Ocean_Best_Estimate",
				Latitude:       "Latitude",
				Longitude:      "Longitude",
				Zenith:         "Viewing_Zenith_Angle",
				DefaultQuality: 3,
				MinQuality:     0,
				ValidMin:       ptr(-0.05),
				ValidMax:       ptr(5.0),
				FillValue:      gridding.FillValue,
			},
			{
				Name:           "DT",
				Prefix:         "AERDT_L2_VIIRS",
				Value:          "geophysical_data/Optical_Depth_Land_And_Ocean",
				Latitude:       "geolocation_data/latitude",
				Longitude:      "geolocation_data/longitude",
				Zenith:         "geolocation_data/sensor_zenith_angle",
				DefaultQuality: 3,
				MinQuality:     0,
				ValidMin:       ptr(-0.05),
				ValidMax:       ptr(5.0),
				FillValue:      gridding.FillValue,
			},
		},
		Aggregation: Aggregation{MinSamples: 1},
		Combine:     Combine{Enabled: true, Primary: "DB", Second: "DT"},
		Workers:     Workers{Days: 2, Files: 4},
		Output: Output{
			Dir:       "./output",
			Formats:   []string{"netcdf"},
			ShortName: "AER_DBDT_D10KM_L3_VIIRS",
			Version:   "001",
			ZarrChunk: 360,
		},
		Schedule: Schedule{Cron: "0 6 * * *", LagDays: 3},
	}
}
