// Command arcanad is the development backend for the arcana client.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/naveenspark/arcana/internal/config"
	"github.com/naveenspark/arcana/internal/deck"
	"github.com/naveenspark/arcana/internal/logging"
	"github.com/naveenspark/arcana/internal/server"
	"github.com/naveenspark/arcana/pkg/domain"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServer()
	if err != nil {
		return err
	}
	log, err := logging.NewStderr(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	opts := []server.Option{server.WithLogger(log)}
	if cfg.Metrics {
		opts = append(opts, server.WithMetrics())
	}
	if cfg.DevToken != "" {
		opts = append(opts, server.WithAccount(cfg.DevToken, domain.SessionSnapshot{
			UID:        "dev",
			Email:      "dev@arcana.local",
			NeedsTerms: true,
		}))
	}
	s := server.New(deck.Standard(cfg.ImageBase), deck.Spreads(), opts...)

	srv := &http.Server{Addr: cfg.Addr, Handler: s.Handler()}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("metrics", cfg.Metrics))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
