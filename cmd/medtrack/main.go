// MedTrack tracks patient visits across hospitals. Records live in a local
// SQLite database and are mirrored as a whole to a MedTrack backend whenever
// the machine is online.
//
// Usage:
//
//	medtrack setup                          # interactive config wizard
//	medtrack serve [--addr :3001]           # run the backend
//	medtrack hospitals list|add             # manage hospitals
//	medtrack visits list|show|add|edit|delete
//	medtrack export [--out dir]             # CSV export
//	medtrack stats | status | insight
//	medtrack watch                          # long-running session on stdin
//	medtrack version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/njoerd114/medtrack/internal/cli"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cli.Version = version
	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		stop()
		os.Exit(1)
	}
}
