package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/badvoidstar/astervoids/pkg/config"
	"github.com/badvoidstar/astervoids/pkg/retry"
	"github.com/badvoidstar/astervoids/pkg/server"
)

func main() {
	cfg := loadAndConfigureSystem()

	srv, listener := initializeServer(cfg)
	executeServerLifecycle(srv, listener, cfg)
}

// loadAndConfigureSystem loads configuration and sets up logging. Startup
// runs once per process, before any circuit breaker has accumulated state
// worth tripping on, so it leans on retry's bare policies rather than
// pkg/integration's breaker-backed executors.
func loadAndConfigureSystem() *config.Config {
	var cfg *config.Config
	err := retry.Execute(context.Background(), func(ctx context.Context) error {
		loaded, loadErr := config.Load()
		if loadErr != nil {
			return loadErr
		}
		cfg = loaded
		return nil
	})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	configureLogging(cfg.LogLevel)
	logStartupInfo(cfg)
	return cfg
}

// checkWebDirAtStartup confirms the static web client directory exists
// before the listener opens, retrying past a not-yet-mounted volume during
// container startup.
func checkWebDirAtStartup(cfg *config.Config) {
	err := retry.ExecuteFileSystem(context.Background(), func(ctx context.Context) error {
		info, statErr := os.Stat(cfg.WebDir)
		if statErr != nil {
			return statErr
		}
		if !info.IsDir() {
			return fmt.Errorf("web dir %q is not a directory", cfg.WebDir)
		}
		return nil
	})
	if err != nil {
		logrus.WithError(err).Fatal("Static web directory is not reachable")
	}
}

// configureLogging sets up the logging system based on configuration.
func configureLogging(logLevel string) {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.WithError(err).Warn("Invalid log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// logStartupInfo logs server startup information.
func logStartupInfo(cfg *config.Config) {
	logrus.WithFields(logrus.Fields{
		"port":            cfg.ServerPort,
		"webDir":          cfg.WebDir,
		"maxSessions":     cfg.MaxSessions,
		"maxMembers":      cfg.MaxMembersPerSession,
		"rateLimitEnable": cfg.RateLimitEnabled,
		"devMode":         cfg.EnableDevMode,
	}).Info("Starting lobby hub server")
}

// initializeServer creates the server and network listener.
func initializeServer(cfg *config.Config) (*server.RPCServer, net.Listener) {
	checkWebDirAtStartup(cfg)

	srv, err := server.NewRPCServer(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize server")
	}

	var listener net.Listener
	err = retry.ExecuteNetwork(context.Background(), func(ctx context.Context) error {
		l, listenErr := net.Listen("tcp", fmt.Sprintf(":%d", cfg.ServerPort))
		if listenErr != nil {
			return listenErr
		}
		listener = l
		return nil
	})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to start listener")
	}

	return srv, listener
}

// executeServerLifecycle handles the complete server lifecycle including startup and shutdown.
func executeServerLifecycle(srv *server.RPCServer, listener net.Listener, cfg *config.Config) {
	sigChan, errChan := setupShutdownHandling()
	startServerAsync(srv, listener, errChan)
	waitForShutdownSignal(sigChan, errChan)
	performGracefulShutdown(srv, listener, cfg)
}

// setupShutdownHandling creates channels for graceful shutdown signal handling.
func setupShutdownHandling() (chan os.Signal, chan error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	errChan := make(chan error, 1)
	return sigChan, errChan
}

// startServerAsync starts the server in a background goroutine.
func startServerAsync(srv *server.RPCServer, listener net.Listener, errChan chan error) {
	go func() {
		logrus.WithField("address", listener.Addr()).Info("Server listening")
		if err := srv.Serve(listener); err != nil {
			errChan <- fmt.Errorf("server failed: %w", err)
		}
	}()
}

// waitForShutdownSignal waits for either a shutdown signal or server error.
func waitForShutdownSignal(sigChan chan os.Signal, errChan chan error) {
	select {
	case sig := <-sigChan:
		logrus.WithField("signal", sig).Info("Received shutdown signal")
	case err := <-errChan:
		logrus.WithError(err).Error("Server error")
	}
}

// performGracefulShutdown handles the graceful server shutdown process.
func performGracefulShutdown(srv *server.RPCServer, listener net.Listener, cfg *config.Config) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	logrus.Info("Shutting down server gracefully...")

	srv.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Error during server shutdown")
	}

	if err := listener.Close(); err != nil {
		logrus.WithError(err).Warn("Error closing listener")
	}

	select {
	case <-shutdownCtx.Done():
		logrus.Warn("Shutdown timeout exceeded, forcing exit")
	case <-time.After(cfg.ShutdownGracePeriod):
		logrus.Info("Server shutdown completed")
	}
}
