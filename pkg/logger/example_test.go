package logger_test

import (
	"errors"
	"time"

	"github.com/wonny/aodgrid/pkg/config"
	"github.com/wonny/aodgrid/pkg/logger"
)

// Example_withFields demonstrates structured logging for one processing day
func Example_withFields() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	dayLog := log.ForDay(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "AERDB_L2_VIIRS_SNPP")
	dayLog.WithFields(map[string]interface{}{
		"files":        14,
		"cells_filled": 52113,
	}).Info("Day gridded")
}

// Example_withError demonstrates error logging
func Example_withError() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "debug",
		LogFormat: "console",
	}

	log := logger.New(cfg)

	err := errors.New("s3 GetObject: AccessDenied")
	log.WithError(err).
		WithField("granule", "AERDT_L2_VIIRS_SNPP.A2024001.0006.002.nc").
		Warn("Granule skipped")
}
