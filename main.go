package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/adapter/agentstep"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/admission"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/config"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/dag"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/evaluation"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/logger"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/repository"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/service"
	v1 "github.com/akaashnidhiss/agentic-supplier-negotiation/internal/transport/http/v1"
	"github.com/akaashnidhiss/agentic-supplier-negotiation/policy"
)

func main() {
	// Load configuration
	cfg := config.Load()

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("starting negotiation orchestrator",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("database", cfg.DatabaseURL),
		zap.String("mode", cfg.Mode))

	// Initialize store
	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("failed to initialize store", zap.Error(err))
	}
	defer db.Close()

	// Initialize policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		zlog.Fatal("failed to initialize policy engine", zap.Error(err))
	}

	// Initialize agent step adapter (MOCK or live LLM, per config)
	adapter := agentstep.New(cfg, zlog)

	// Initialize executor and service
	recorder := evaluation.NewRecorder(db, zlog)
	executor := dag.NewExecutor(db, adapter, recorder, policyEngine, cfg.JudgePromptVersion, zlog)
	ctrl := admission.NewController()
	svc := service.New(db, ctrl, executor, recorder, cfg, zlog)

	// Initialize handler
	h := v1.NewHandler(svc)

	// Create Echo server
	server := echo.New()
	server.HideBanner = true

	// Middleware
	server.Use(middleware.Logger())
	server.Use(middleware.Recover())
	server.Use(middleware.CORS())

	// Register routes
	h.RegisterRoutes(server)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("failed to start server", zap.Error(err))
		}
	}()

	zlog.Info("API started", zap.Int("port", cfg.HTTPPort))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down orchestrator")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server shutdown failed", zap.Error(err))
	}
}
