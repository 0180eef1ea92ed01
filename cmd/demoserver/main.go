// Command demoserver starts the demo shop whose pages gain dark patterns as
// their versions are bumped.
// Usage: go run ./cmd/demoserver [addr]
// Default addr: :9999
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/raysh454/darkscan/internal/demoserver"
	"github.com/raysh454/darkscan/internal/logging"
)

func main() {
	cfg := demoserver.DefaultConfig()
	if len(os.Args) > 1 {
		cfg.Addr = os.Args[1]
	}

	logger := logging.NewStdoutLogger("demoserver")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := demoserver.NewDemoServer(cfg, logger).Start(ctx); err != nil {
		logger.Error("demo shop stopped", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}
}
