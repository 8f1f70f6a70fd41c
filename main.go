package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xiaot623/caucus/internal/adapter/llm"
	"github.com/xiaot623/caucus/internal/config"
	"github.com/xiaot623/caucus/internal/hub"
	"github.com/xiaot623/caucus/internal/logging"
	"github.com/xiaot623/caucus/internal/repository"
	"github.com/xiaot623/caucus/internal/rules"
	"github.com/xiaot623/caucus/internal/service"
	handler "github.com/xiaot623/caucus/internal/transport/http"
	"github.com/xiaot623/caucus/internal/transport/ws"
	"github.com/xiaot623/caucus/policy"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	logger.Info("starting caucus server",
		"http_port", cfg.HTTPPort,
		"database", cfg.DatabaseURL,
		"producer_mode", cfg.ProducerMode,
		"timer_tick", cfg.TimerTick,
	)

	fatal := func(msg string, err error) {
		logger.Error(msg, "error", err)
		os.Exit(1)
	}

	// Rules of procedure
	procedure, err := rules.Load(cfg.RulesFile)
	if err != nil {
		fatal("failed to load rules", err)
	}

	// Initialize store
	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		fatal("failed to initialize store", err)
	}
	defer db.Close()

	// Initialize policy engine
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	policyEngine, err := policy.LoadEngine(ctx, cfg.PolicyFile)
	if err != nil {
		fatal("failed to initialize policy engine", err)
	}

	// Initialize producer
	producer, err := llm.NewFromConfig(cfg, logger)
	if err != nil {
		fatal("failed to initialize producer", err)
	}

	// Initialize hub and service
	h := hub.NewHub(logger.With("component", "hub"))
	go h.Run(ctx)

	svc := service.New(db, h, producer, cfg, policyEngine, procedure, logger)
	go svc.RunTimerDriver(ctx)

	wsServer := ws.NewServer(ws.DefaultOptions(), h, svc, logger)
	server := handler.NewServer(svc, wsServer)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			fatal("failed to start server", err)
		}
	}()

	logger.Info("API started", "port", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down caucus server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown server gracefully", "error", err)
	}
	stop()

	logger.Info("caucus server stopped")
}
