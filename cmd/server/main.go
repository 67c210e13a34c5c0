// Deploy Doctor - Server Entry Point
//
// Serves the log analysis pipeline over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/deploy-doctor/internal/config"
	"github.com/deploy-doctor/internal/handler"
	"github.com/deploy-doctor/internal/logger"
	"github.com/deploy-doctor/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	isDev := os.Getenv("GIN_MODE") != "release"

	zapLogger, err := logger.New(isDev)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	if err := run(isDev, zapLogger); err != nil {
		zapLogger.Fatal("server exited", zap.Error(err))
	}
}

func run(isDev bool, zapLogger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	zapLogger.Info("starting Deploy Doctor",
		zap.Bool("development", isDev),
		zap.String("port", cfg.Server.Port),
		zap.String("ai_provider", string(cfg.AI.Provider)),
		zap.String("ai_model", cfg.AI.Model),
		zap.Duration("ai_timeout", cfg.AI.Timeout),
		zap.Bool("ai_key_set", cfg.AI.HasCredential()),
		zap.Bool("mock_mode", cfg.AI.MockMode),
	)

	analyzer, err := service.Build(cfg, zapLogger)
	if err != nil {
		return fmt.Errorf("build analyzer: %w", err)
	}

	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler.NewRouter(analyzer, zapLogger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		zapLogger.Info("server listening", zap.String("addr", srv.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	zapLogger.Info("shutting down server")

	// In-flight analyses may run up to the AI timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AI.Timeout+config.ResponseMargin)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	zapLogger.Info("server stopped")
	return nil
}
