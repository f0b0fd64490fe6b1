package main

import (
	"os"

	"github.com/wonny/aodgrid/cmd/aodgrid/commands"
)

// main is the entry point for the aodgrid CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/aodgrid [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
