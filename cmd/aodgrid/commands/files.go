package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aodgrid/internal/runconfig"
)

// filesCmd represents the files command
var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "아카이브 파일 조회",
}

var filesListCmd = &cobra.Command{
	Use:   "list <product> <YYYYMMDD>",
	Short: "하루치 L2 파일 목록",
	Long: `LAADS 아카이브에서 해당 날짜의 L2 granule 목록을 조회합니다.
product는 job 파일의 짧은 이름(DB, DT)입니다.

Example:
  go run ./cmd/aodgrid files list DB 20240101`,
	Args: cobra.ExactArgs(2),
	RunE: runFilesList,
}

func init() {
	rootCmd.AddCommand(filesCmd)
	filesCmd.AddCommand(filesListCmd)
}

func runFilesList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	date, err := runconfig.ParseDate(args[1])
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	pc, ok := a.job.Product(args[0])
	if !ok {
		return fmt.Errorf("unknown product %q in %s", args[0], jobFile)
	}
	archive := pc.ArchiveName(a.job.Satellite)

	files, err := a.catalog.ListFiles(ctx, archive, date)
	if err != nil {
		return fmt.Errorf("list %s: %w", archive, err)
	}

	fmt.Printf("%s  %s\n", archive, a.catalog.DirectoryURL(archive, date))
	PrintSeparator()
	for _, f := range files {
		fmt.Println(f)
	}
	PrintSeparator()
	fmt.Printf("%d files\n", len(files))
	return nil
}
