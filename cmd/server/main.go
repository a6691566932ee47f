package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	httpapi "docverify/internal/http"
	"docverify/internal/platform/config"
	"docverify/internal/platform/httpserver"
	"docverify/internal/platform/logger"
	platformmetrics "docverify/internal/platform/metrics"
	platformmw "docverify/internal/platform/middleware"
	"docverify/internal/verification/bootstrap"
	"docverify/internal/verification/domain/document"
	"docverify/internal/verification/handler"
	verificationmetrics "docverify/internal/verification/metrics"
	"docverify/internal/verification/service"
)

const shutdownTimeout = 15 * time.Second

// main wires dependencies, serves HTTP and shuts down on SIGINT/SIGTERM.
// Business logic lives in internal/verification.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.DefaultRegisterer
	vm := verificationmetrics.New(reg)
	registry := document.NewRegistry()

	pipe, err := bootstrap.NewPipeline(ctx, cfg.Vision, registry, log, vm)
	if err != nil {
		return fmt.Errorf("vision: %w", err)
	}
	defer pipe.Close()

	infra, err := newInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	svc := service.New(pipe, infra.records,
		service.WithCache(infra.cache, cfg.Cache.TTL),
		service.WithAuditPublisher(infra.audit),
		service.WithLogger(log),
		service.WithMetrics(vm),
	)
	verifications := handler.New(svc, log, platformmw.OptionalAuth(cfg.Auth.SigningKey, cfg.Auth.Issuer, log))

	router := httpapi.NewRouter(httpapi.Config{
		Logger:   log,
		Metrics:  platformmetrics.New(reg),
		Gatherer: prometheus.DefaultGatherer,
		Checks:   infra.checks,
	}, verifications)

	srv := httpserver.New(cfg.Server.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting docverify", "addr", cfg.Server.Addr, "auth", cfg.Auth.SigningKey != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
