package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/agendad/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon: background rescan loop plus the status HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	application, err := buildApp(true)
	if err != nil {
		return err
	}
	logger := application.logger
	defer logger.Sync() //nolint:errcheck
	defer application.store.Close()

	server, err := httpapi.NewServer(application.coord, logger, &httpapi.Config{
		Host: "localhost",
		Port: application.cfg.Server.Port,
	})
	if err != nil {
		return err
	}

	if err := application.coord.Start(); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.Info("agendad started",
		zap.String("version", version),
		zap.Int("port", application.cfg.Server.Port),
		zap.String("spool", application.cfg.Source.Dir))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("http server failed", zap.Error(err))
		application.coord.Stop()
		return err
	}

	application.coord.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), application.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}
