package commands

import (
	"fmt"
	"net/url"
	"time"

	"github.com/wonny/aodgrid/internal/manifest"
	"github.com/wonny/aodgrid/internal/pipeline"
	"github.com/wonny/aodgrid/internal/runconfig"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a titled header block
func PrintHeader(title string, lines ...string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
	for _, l := range lines {
		fmt.Printf("  %s\n", l)
	}
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintDay prints one line per product for a processed day
func PrintDay(d *pipeline.DayResult) {
	date := d.Date.Format(runconfig.DateLayout)
	if d.Err != nil {
		fmt.Printf("❌ %s  %v\n", date, d.Err)
		return
	}
	for _, po := range d.Products {
		fmt.Printf("%s %s  %-3s %-9s files %d ok / %d failed  cells %d\n",
			statusIcon(po.Record.Status), date, po.Product, po.Record.Status,
			len(po.Record.FilesOK), len(po.Record.FilesFailed), po.Record.CellsFilled)
	}
	for _, out := range d.Outputs {
		fmt.Printf("   → %s\n", out)
	}
}

// PrintRangeSummary prints the totals of a date-range run
func PrintRangeSummary(s *pipeline.RangeSummary) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  Days      : %d\n", s.Days)
	fmt.Printf("  Processed : %d\n", s.Processed)
	fmt.Printf("  Failed    : %d\n", s.Failed)
	fmt.Printf("  Skipped   : %d\n", s.Skipped)
	fmt.Printf("  Success   : %.1f%%\n", s.SuccessRate*100)
	fmt.Printf("  Elapsed   : %s\n", s.Elapsed.Round(time.Millisecond))
	PrintDoubleSeparator()
}

func statusIcon(s manifest.Status) string {
	switch s {
	case manifest.StatusComplete:
		return "✅"
	case manifest.StatusPartial, manifest.StatusEmpty:
		return "⚠️ "
	case manifest.StatusNoInput:
		return "➖"
	default:
		return "❌"
	}
}

// maskPassword hides the password in a database URL for display
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
