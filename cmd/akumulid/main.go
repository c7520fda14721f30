// Command akumulid is the storage core's process entry point: it loads
// configuration, opens a Storage instance, and runs until a shutdown
// signal arrives. It owns no network listener — the front door and
// ingestion pipeline are out of scope for this engine (see DESIGN.md) —
// so its only jobs are lifecycle (open/close) and turning programmer-bug
// panics (spec §7) into a clean, logged exit.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/embeddb/akumuli/internal/akumuli/storage"
	"github.com/embeddb/akumuli/internal/config"
	"github.com/embeddb/akumuli/internal/logging"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	defer recoverAndExit(logger)

	logger.Info("akumulid starting", "version", Version, "commit", GitCommit, "name", cfg.Storage.Name)

	if err := cfg.EnsureDirectories(); err != nil {
		logger.Fatal("failed to create storage directories", "error", err)
	}

	s, err := storage.Open(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open storage", "error", err)
	}

	logger.Info("akumulid ready",
		"meta_path", cfg.Storage.MetaPath,
		"vol_path", cfg.Storage.VolPath,
		"num_pages", cfg.Storage.NumPages)

	waitForShutdown(logger)

	if err := s.Close(); err != nil {
		logger.Error("error closing storage", "error", err)
	}
	logger.Info("akumulid stopped")
}

// waitForShutdown blocks until SIGINT or SIGTERM arrives.
func waitForShutdown(logger *logging.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received shutdown signal", "signal", sig.String())
}

// recoverAndExit turns a programmer-bug panic (spec §7; in the core, a
// chunk CRC mismatch on read) into one logged error line and a non-zero exit, rather than a bare
// stack trace or a silently swallowed failure.
func recoverAndExit(logger *logging.Logger) {
	if r := recover(); r != nil {
		logger.Error("akumulid exiting on unrecoverable error", "panic", r)
		os.Exit(1)
	}
}
