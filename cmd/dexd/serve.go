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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"loyaltyDex/internal/api"
	"loyaltyDex/internal/config"
	"loyaltyDex/internal/metrics"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadServe(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Config)
	if err != nil {
		return err
	}
	defer store.Close()

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	svc := newService(cfg.Config, store, logger, metrics.NewSink(m))
	auth := api.NewAuthMiddleware([]byte(cfg.JWTSecret), logger.Named("auth"))
	server := api.NewServer(svc, m, auth, logger.Named("api"))

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	logger.Info("serve start",
		zap.String("listen", cfg.Listen),
		zap.String("store", cfg.Store),
		zap.String("data_dir", cfg.DataDir),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.String("events_out", cfg.EventsOut),
	)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	logger.Info("serve stopped")
	return nil
}
