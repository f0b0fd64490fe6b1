package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aodgrid/internal/pipeline"
	"github.com/wonny/aodgrid/internal/scheduler"
	"github.com/wonny/aodgrid/internal/scheduler/jobs"
)

const (
	gapFillWindow  = 14 // days
	downloadMaxAge = 24 * time.Hour
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

등록되는 작업:
- daily_gridding: job 파일의 schedule.cron (기본 매일 06:00 UTC, lag_days 전 날짜)
- gap_fill: 6시간마다 최근 14일 중 실패/누락된 날짜 재처리
- workdir_cleanup: 매시간 24시간 지난 다운로드 파일 삭제

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행 (완료까지 대기)

Example:
  go run ./cmd/aodgrid scheduler start
  go run ./cmd/aodgrid scheduler list
  go run ./cmd/aodgrid scheduler run daily_gridding`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// newScheduler registers every job against one processor
func newScheduler(a *app, proc *pipeline.Processor) (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log, scheduler.DefaultOptions())

	toAdd := []scheduler.Job{
		jobs.NewGapFillJob(proc, a.store, a.job, gapFillWindow, a.log),
		jobs.NewWorkDirCleanupJob(a.cfg.WorkDir, downloadMaxAge, a.log),
	}
	if a.job.Schedule.Cron != "" {
		toAdd = append([]scheduler.Job{jobs.NewDailyGriddingJob(proc, a.job.Schedule, a.log)}, toAdd...)
	}

	for _, job := range toAdd {
		if err := sched.AddJob(job); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	proc, err := a.newProcessor(ctx, nil, false)
	if err != nil {
		return err
	}
	sched, err := newScheduler(a, proc)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	fmt.Println("✅ Scheduler started")
	fmt.Println("\nRegistered jobs:")
	for _, st := range sched.Stats() {
		fmt.Printf("  - %-16s %s\n", st.JobName, st.Schedule)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	proc, err := a.newProcessor(ctx, nil, false)
	if err != nil {
		return err
	}
	sched, err := newScheduler(a, proc)
	if err != nil {
		return err
	}

	fmt.Println("Registered jobs:")
	for _, st := range sched.Stats() {
		fmt.Printf("  - %-16s %s\n", st.JobName, st.Schedule)
	}
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	proc, err := a.newProcessor(ctx, nil, false)
	if err != nil {
		return err
	}
	sched, err := newScheduler(a, proc)
	if err != nil {
		return err
	}

	fmt.Printf("Running job: %s\n", args[0])
	res, err := sched.RunNow(ctx, args[0])
	if err != nil {
		return err
	}

	if !res.Success {
		return fmt.Errorf("❌ %s failed after %d attempts: %s", res.JobName, res.Attempts, res.Error)
	}
	fmt.Printf("✅ %s completed in %s\n", res.JobName, res.Duration.Round(time.Millisecond))
	return nil
}
