package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/stevemurr/tinybase/config"
	"github.com/stevemurr/tinybase/handler"
	"github.com/stevemurr/tinybase/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	l, err := cfg.Logger()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer l.Sync() //nolint:errcheck // nothing to do on failure
	zap.ReplaceGlobals(l)

	if err := run(cfg, l); err != nil {
		l.Fatal("Server failed.", zap.Error(err))
	}
}

func run(cfg *config.Config, l *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inner, err := store.New(ctx, cfg.Store, l.Named("store"))
	if err != nil {
		return err
	}
	s := store.NewInstrumented(inner, cfg.Store.Backend)
	defer func() {
		if err := s.Close(); err != nil {
			l.Error("Failed to close store.", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		s,
	)

	h := handler.New(s, l.Named("http"), handler.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		Gatherer:       reg,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("Starting tinybase.",
			zap.String("addr", srv.Addr),
			zap.String("backend", cfg.Store.Backend),
			zap.String("data_dir", cfg.Store.DataDir),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	l.Info("Shutting down.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
