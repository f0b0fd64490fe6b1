package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aodgrid/internal/manifest"
	"github.com/wonny/aodgrid/pkg/config"
	"github.com/wonny/aodgrid/pkg/database"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "실행 이력 DB 관리",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "grid_runs 테이블 생성",
	RunE:  runDBMigrate,
}

var dbPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "PostgreSQL 연결 테스트",
	Long: `데이터베이스 연결을 테스트하고 풀 통계를 표시합니다.

Example:
  go run ./cmd/aodgrid db ping`,
	RunE: runDBPing,
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbPingCmd)
}

// connectDB needs only process config, not the job file
func connectDB(ctx context.Context) (*database.DB, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, cfg, fmt.Errorf("connect to database: %w", err)
	}
	return db, cfg, nil
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, _, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := manifest.NewPostgresStore(db.Pool).Migrate(ctx); err != nil {
		return fmt.Errorf("❌ migrate: %w", err)
	}
	fmt.Println("✅ grid_runs schema is up to date")
	return nil
}

func runDBPing(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, cfg, err := connectDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Printf("Database URL: %s\n", maskPassword(cfg.Database.URL))

	status, err := db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("❌ Health check failed: %w", err)
	}

	fmt.Println("✅ Health Check Results:")
	fmt.Printf("   Healthy: %v\n", status.Healthy)
	fmt.Printf("   Response Time: %v\n", status.ResponseTime)
	fmt.Printf("   Timestamp: %v\n\n", status.Timestamp.Format(time.RFC3339))

	fmt.Println("📊 Connection Pool Statistics:")
	fmt.Printf("   Max Connections: %d\n", status.Stats.MaxConns)
	fmt.Printf("   Total Connections: %d\n", status.Stats.TotalConns)
	fmt.Printf("   Acquired Connections: %d\n", status.Stats.AcquiredConns)
	fmt.Printf("   Idle Connections: %d\n", status.Stats.IdleConns)
	return nil
}
