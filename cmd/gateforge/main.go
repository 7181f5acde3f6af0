// Command gateforge is the single-shot governance-pipeline CLI: every
// subcommand reads JSON/JSONL inputs, runs one pipeline stage, and emits
// JSON (plus an optional markdown report). Entry point and root command
// wiring follow the teacher's cmd/<tool>/main.go split-by-concern layout,
// with each command group living in its own internal/cli/cmd_*.go file.
package main

import (
	"fmt"
	"os"

	"github.com/wangzizhe/gateforge/internal/cli"
	"github.com/wangzizhe/gateforge/internal/config"
	"github.com/wangzizhe/gateforge/internal/logger"
)

func main() {
	config.LoadEnv()
	if err := logger.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "gateforge: logger init failed: %v\n", err)
	}
	defer logger.Sync()

	if err := cli.Execute(); err != nil {
		if exitErr, ok := err.(cli.ExitError); ok {
			if exitErr.Err != nil {
				fmt.Fprintf(os.Stderr, "gateforge: %v\n", exitErr.Err)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
