package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aodgrid/internal/api"
	"github.com/wonny/aodgrid/internal/api/handlers"
	"github.com/wonny/aodgrid/internal/api/stream"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `상태 API 서버를 시작합니다.

Endpoints:
  GET  /health                      - Health check
  GET  /api/runs?from=&to=|limit=   - 실행 이력
  GET  /api/runs/{date}             - 하루 이력 (전 product)
  GET  /api/runs/{date}/{product}   - 단일 이력
  POST /api/grid {"date":"YYYYMMDD"} - 하루 격자화 트리거
  GET  /api/stream                  - 진행 이벤트 (websocket)
  GET  /api/jobs                    - 스케줄 작업 통계 (--scheduler)
  POST /api/jobs/{name}/run         - 작업 즉시 실행 (--scheduler)

Example:
  go run ./cmd/aodgrid api
  go run ./cmd/aodgrid api --port 8080 --scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort      string
	apiScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: PORT)")
	apiCmd.Flags().BoolVar(&apiScheduler, "scheduler", false, "같은 프로세스에서 스케줄러 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	hub := stream.NewHub(a.log)
	proc, err := a.newProcessor(ctx, hub, false)
	if err != nil {
		return err
	}

	checks := map[string]handlers.Pinger{}
	if a.db != nil {
		checks["postgres"] = a.db
	}

	h := api.Handlers{
		Health: handlers.NewHealthHandler("aodgrid", checks),
		Runs:   handlers.NewRunsHandler(ctx, a.store, proc, a.log),
		Stream: hub,
	}

	if apiScheduler {
		sched, err := newScheduler(a, proc)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		h.Jobs = handlers.NewJobsHandler(sched, a.log)
		sched.Start()
		defer sched.Stop()
	}

	server := api.New(a.cfg, a.log, api.NewRouter(h, a.log))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	a.log.Info("Shutting down server...")
	hub.Close()
	cancel() // 트리거된 격자화 작업 취소

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
