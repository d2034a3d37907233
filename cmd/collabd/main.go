package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/workhive/collab/internal/config"
	"github.com/workhive/collab/internal/logger"
	"github.com/workhive/collab/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to JSON config file")
		port       = flag.Int("port", 0, "listen port (overrides config)")
		logLevel   = flag.String("log-level", "", "log level: debug, info, warn, error, none")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Global().Close()
	}()

	srv := server.New(cfg, logger.Global())
	if err := srv.Start(); err != nil {
		return err
	}

	// Block until asked to stop
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received %s, shutting down", sig)

	return srv.Stop()
}
