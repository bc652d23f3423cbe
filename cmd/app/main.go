package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DetectorWeb/internal/config"
	"DetectorWeb/pkg/log"
	"DetectorWeb/pkg/metrics"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.NewLogger().Warnf("Error loading .env file: %v", err)
	}

	logger := log.NewLogger()

	env, err := config.LoadEnv(os.Args, os.Getenv)
	if err != nil {
		logger.Fatal(err)
	}

	fiberApp := config.NewFiber(logger, env.BodyLimit())
	validator := config.NewValidator()

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithEnv(env),
		config.WithValidator(validator),
		config.WithMiddleware(),
		config.WithUtils(),
		config.WithPredictor(),
		config.WithAnnotator(),
		config.WithStorage(),
		config.WithRedisServer(),
		config.WithMetrics(metrics.New()),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.CheckModel(context.Background())
	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	<-sigChan
	logger.Info("Shutting down server...")
	if err := server.Shutdown(10 * time.Second); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}
