package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/yourusername/tp-endpoint-poc/internal/config"
	"github.com/yourusername/tp-endpoint-poc/internal/log"
	"github.com/yourusername/tp-endpoint-poc/internal/mockserver"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	log.Configure(log.Config{Level: cfg.Logging.Level, Service: "mockendpoint"})
	logger := log.WithComponent("mockserver")

	ln, err := net.Listen("tcp", cfg.Mock.Listen)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.Mock.Listen).Msg("listen failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, cfg, ln, logger); err != nil {
		logger.Error().Err(err).Msg("mock endpoint stopped")
		os.Exit(1)
	}
}

// loadConfig applies flags on top of the config file and validates the
// result.
func loadConfig(args []string) (*config.Config, error) {
	fs := flag.NewFlagSet("mockendpoint", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config file")
	listen := fs.String("listen", "", "listen address (default from config, :8000)")
	rps := fs.Int("rps", -1, "per-client requests per second, 0 disables limiting (default from config)")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	if *listen != "" {
		cfg.Mock.Listen = *listen
	}
	if *rps != -1 {
		cfg.Mock.RequestsPerSecond = *rps
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// serve runs the mock model endpoint on ln until ctx is done, then drains
// in-flight requests.
func serve(ctx context.Context, cfg *config.Config, ln net.Listener, logger zerolog.Logger) error {
	handler := mockserver.New(cfg, logger).Handler(map[string]http.Handler{
		"/metrics": promhttp.Handler(),
	})
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", ln.Addr().String()).
			Str("path", cfg.Endpoint.Path).
			Ints("shape", []int{cfg.Image.Channels, cfg.Image.Rows, cfg.Image.Cols}).
			Msg("mock endpoint listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
