// Deploy Doctor - CLI Entry Point
//
// Reads a deployment log from a file or stdin and prints the AI analysis.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/deploy-doctor/internal/cli"
	"github.com/deploy-doctor/internal/formatter"
	"github.com/joho/godotenv"
)

var version = "dev" // Overwritten at build time

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cli.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		formatter.RenderError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
