// Command ragstore serves the document retrieval API over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ragstore/internal/bootstrap"
	"github.com/kailas-cloud/ragstore/internal/config"
	logpkg "github.com/kailas-cloud/ragstore/internal/logger"
	"github.com/kailas-cloud/ragstore/internal/metrics"
	chiTransport "github.com/kailas-cloud/ragstore/internal/transport/chi"
	"github.com/kailas-cloud/ragstore/internal/version"
)

func main() {
	// A .env file is optional and never overrides the real environment.
	_ = godotenv.Load()

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ragstore: load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ragstore: logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, env, &cfg, logger)
	stop()
	if err != nil {
		logger.Error("ragstore exited", zap.Error(err))
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, env string, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting ragstore",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("backend_driver", cfg.Backend.Driver),
		zap.Strings("backend_addrs", cfg.Backend.Addrs),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("Close backend", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.HTTP.Port)),
		Handler:           chiTransport.NewRouter(app.Server(logger), cfg.Auth.APIKeys, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
