package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentfleet/agenthub/hub"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to hub config JSON file (optional)")
		addr        = flag.String("addr", "", "Listen address (overrides config)")
		snapshotDir = flag.String("snapshot-dir", "", "Directory for team snapshots (overrides config)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	cfg := hub.DefaultConfig()
	if *configFile != "" {
		loaded, err := hub.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}

	if *addr != "" {
		cfg.Addr = *addr
	}
	if *snapshotDir != "" {
		cfg.SnapshotDir = *snapshotDir
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	srv, err := hub.New(&cfg, hub.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create hub server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatalf("Hub server failed: %v", err)
	}
}
