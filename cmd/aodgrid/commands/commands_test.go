package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aodgrid/internal/runconfig"
	"github.com/wonny/aodgrid/pkg/config"
	"github.com/wonny/aodgrid/pkg/logger"
	"github.com/wonny/aodgrid/pkg/redis"
)

func TestMaskPassword(t *testing.T) {
	masked := maskPassword("postgres://aod:secret@db:5432/aodgrid")
	assert.NotContains(t, masked, "secret")
	assert.Contains(t, masked, "aod:")
	assert.Contains(t, masked, "@db:5432/aodgrid")
	assert.Equal(t, "postgres://db:5432/aodgrid", maskPassword("postgres://db:5432/aodgrid"))
	assert.Equal(t, "", maskPassword(""))
}

func TestGridDays(t *testing.T) {
	job := runconfig.Default()
	job.Dates = runconfig.DateRange{Start: "20240301", End: "20240303"}

	t.Cleanup(func() { gridStart, gridEnd = "", "" })

	gridStart, gridEnd = "", ""
	days, err := gridDays(job)
	require.NoError(t, err)
	assert.Len(t, days, 3)

	gridStart, gridEnd = "20240110", ""
	days, err = gridDays(job)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)}, days)

	gridStart, gridEnd = "20240110", "20240101"
	_, err = gridDays(job)
	assert.Error(t, err)

	gridStart = ""
	job.Dates = runconfig.DateRange{}
	_, err = gridDays(job)
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"grid", "files", "scheduler", "api", "db"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestHTTPClients_SharedLimits(t *testing.T) {
	a := &app{
		cfg: &config.Config{
			LAADS: config.LAADSConfig{RatePerSec: 0.5, Timeout: time.Minute},
		},
		log:   logger.Nop(),
		redis: redis.Disabled(),
	}

	laadsLimit, ok := a.laadsHTTP().SharedLimit()
	require.True(t, ok, "laads client has a shared limit")
	assert.Equal(t, redis.LAADSRateLimit(0.5), laadsLimit)
	assert.Equal(t, 2*time.Second, laadsLimit.Window)

	edLimit, ok := a.earthdataHTTP().SharedLimit()
	require.True(t, ok, "earthdata client has a shared limit")
	assert.Equal(t, redis.EarthdataRateLimit, edLimit)
}
