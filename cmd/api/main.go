package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MrJamesThe3rd/bantudesa/internal/app"
	"github.com/MrJamesThe3rd/bantudesa/internal/auth"
	"github.com/MrJamesThe3rd/bantudesa/internal/config"
	bdHttp "github.com/MrJamesThe3rd/bantudesa/internal/http"
	campaignHandler "github.com/MrJamesThe3rd/bantudesa/internal/http/campaign"
	donationHandler "github.com/MrJamesThe3rd/bantudesa/internal/http/donation"
	exportHandler "github.com/MrJamesThe3rd/bantudesa/internal/http/export"
	proofHandler "github.com/MrJamesThe3rd/bantudesa/internal/http/proof"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := app.New(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("initialising services: %w", err)
	}
	defer a.Close()

	var (
		campaignH = campaignHandler.NewHandler(a.Registry, a.Ledger, a.Views)
		donationH = donationHandler.NewHandler(a.Ledger, a.Workflow)
		proofH    = proofHandler.NewHandler(a.Blobs, cfg.Blob.MaxBytes)
		exportH   = exportHandler.NewHandler(a.Export)
	)

	router := bdHttp.New(bdHttp.Config{
		Auth:        auth.NewAuthenticator(cfg.Auth.Secret, cfg.Auth.Issuer),
		Metrics:     a.Metrics,
		Gatherer:    prometheus.DefaultGatherer,
		CORSOrigins: cfg.Server.CORSOrigins,
		Timeout:     cfg.Server.Timeout,
		Ping:        a.Ping,
	}, campaignH, donationH, proofH, exportH)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("starting server", "port", srv.Addr, "storage", cfg.Storage.Driver, "notify", cfg.Notify.Driver)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	return nil
}
