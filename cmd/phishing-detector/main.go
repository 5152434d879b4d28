package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/di"
)

func main() {
	configFile := flag.String("config", "", "Path to config file (searches the default locations if empty)")
	flag.Parse()

	// A .env file is optional; real environment variables take precedence
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env file: %v\n", err)
		os.Exit(1)
	}

	// Build the dependency injection container
	container, err := di.BuildContainer(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(app di.Application) error {
	logger := app.Logger
	defer logger.Sync()

	serverCfg, err := app.Config.GetServer()
	if err != nil {
		return err
	}

	if err := app.Server.Start(); err != nil {
		logger.Error("Failed to start HTTP server", zap.Error(err))
		return err
	}

	if app.Filter != nil {
		if err := app.Filter.Start(); err != nil {
			logger.Error("Failed to start SMTP filter", zap.Error(err))
			return err
		}
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("Shutting down...", zap.String("signal", sig.String()))
	case err, ok := <-app.Server.Errors():
		if ok {
			runErr = err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer cancel()

	if err := app.Server.Stop(ctx); err != nil {
		logger.Error("Failed to stop HTTP server", zap.Error(err))
	}

	if app.Filter != nil {
		if err := app.Filter.Stop(); err != nil {
			logger.Error("Failed to stop SMTP filter", zap.Error(err))
		}
	}

	// Close any resources that need closing
	if closer, ok := app.Explainer.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}

	if app.Cache != nil {
		app.Cache.Stop()
	}

	logger.Info("Shutdown complete")
	return runErr
}
