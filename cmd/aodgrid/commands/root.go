package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	jobFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "aodgrid",
	Short: "VIIRS AOD L2 → L3 daily gridding",
	Long: `aodgrid grids VIIRS Deep Blue / Dark Target aerosol optical depth swaths
(L2) onto a regular daily lat/lon grid (L3) and writes NetCDF / Zarr granules.

Process settings (credentials, database, redis) come from the environment
or .env; the gridding job (grid, products, output) comes from --config.

Usage:
  go run ./cmd/aodgrid [command]

Examples:
  go run ./cmd/aodgrid grid --start 20240101 --end 20240107
  go run ./cmd/aodgrid files list DB 20240101
  go run ./cmd/aodgrid scheduler start
  go run ./cmd/aodgrid api
  go run ./cmd/aodgrid db migrate`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&jobFile, "config", "configs/viirs_snpp_daily.yaml", "gridding job file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
