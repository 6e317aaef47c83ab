package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/internlink/company-portal/internal/portal/config"
	"github.com/internlink/company-portal/internal/portal/gateway"
	"github.com/internlink/company-portal/internal/portal/handlers"
	"github.com/internlink/company-portal/internal/portal/identity"
	"github.com/internlink/company-portal/internal/portal/session"
	"github.com/internlink/company-portal/internal/portal/tokenstore"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	logger := initLogger()
	defer func(logger *zap.Logger) {
		err := logger.Sync()
		if err != nil {
			logger.Error("failed to sync logger", zap.Error(err))
		}
	}(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	tokens, err := tokenstore.Open(cfg.TokenStorePath)
	if err != nil {
		logger.Fatal("failed to open token store", zap.Error(err))
	}
	defer tokens.Close()

	httpClient := &http.Client{Timeout: cfg.RequestTimeout.Std()}
	provider := identity.NewClient(cfg.IdentityBaseURL, httpClient, logger)
	backend := gateway.NewClient(cfg.BackendBaseURL, httpClient, tokens, logger)

	sess := session.NewStore(provider, backend, tokens, logger)
	sess.Restore(context.Background())
	defer sess.Close()

	handler := handlers.NewPortalHandler(sess, backend, handlers.NewMetrics(), logger)
	server := handlers.NewServer(cfg.ListenAddr, handler.Router(), logger)
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	waitForShutdown(server, logger)
}

// initLogger initializes a Zap production logger.
func initLogger() *zap.Logger {
	logger, _ := zap.NewProduction()
	return logger
}

// waitForShutdown blocks until an interrupt or SIGTERM is received, then
// shuts down the server.
func waitForShutdown(server *handlers.Server, logger *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	server.Stop()
	logger.Info("Server stopped properly")
}
