// Command newsctl runs the ingestion pipeline and the search queries against
// the local index without going through the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ainews/backend/pkg/config"
	appLogger "github.com/ainews/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so stdout stays machine readable.
	if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, "stderr"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "newsctl: %v\n", err)
		os.Exit(1)
	}
}
