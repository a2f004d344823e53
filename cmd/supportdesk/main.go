package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"support-flow/clock"
	"support-flow/internal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the desk over the local store and hands stdin to the REPL.
// Every defer runs before main exits.
func run() error {
	envFile := flag.String("env", ".env", "Optional .env file")
	flag.Parse()

	// 1. Configuration & Logger
	config, err := internal.LoadConfig(*envFile)
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Stores
	db, writer, err := internal.OpenStores(config)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing stores...")
		_ = writer.Close()
		_ = db.Close()
	}()

	// 3. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Desk
	desk, err := internal.NewDesk(log, config, db, writer, clock.Real())
	if err != nil {
		return err
	}
	defer desk.Close()
	if err = desk.Reindex(); err != nil {
		return fmt.Errorf("index rebuild failed: %w", err)
	}
	desk.StartTelemetry(ctx)

	if config.DebugPort > 0 {
		app := internal.NewDebugServer(db, nil, desk.MonitoringStats)
		internal.StartDebugServer(log, app, config.DebugPort)
		defer func() { _ = app.Shutdown() }()
	}

	// 5. REPL
	repl := NewRepl(ctx, log, desk, os.Stdout)
	defer repl.Close()
	fmt.Println("support-flow desk, type help for the commands")
	return repl.Run(ctx, os.Stdin)
}
