package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourusername/tp-endpoint-poc/internal/config"
	"github.com/yourusername/tp-endpoint-poc/internal/endpoint"
	"github.com/yourusername/tp-endpoint-poc/internal/guardrail"
	"github.com/yourusername/tp-endpoint-poc/internal/log"
	"github.com/yourusername/tp-endpoint-poc/internal/metrics"
	"github.com/yourusername/tp-endpoint-poc/pkg/ndarray"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run sends one tensor to the model endpoint and checks the answer. It
// returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tp-endpoint-poc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	port := fs.Int("port", 0, "endpoint port (default from config, 8000)")
	path := fs.String("path", "", "endpoint path (default from config, /tpfinalpositiongan/v1)")
	inputPath := fs.String("input", "", "array file (.json, .npy, .bin) to send instead of zero images")
	timeout := fs.Duration("timeout", 0, "per-request timeout (default from config, 30s)")
	attempts := fs.Int("attempts", 0, "maximum request attempts (default from config, 1)")
	metricsFile := fs.String("metrics-file", "", "write metrics in textfile format to this path")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: tp-endpoint-poc <hostname>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Usage: tp-endpoint-poc <hostname>")
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	cfg.Endpoint.Host = fs.Arg(0)
	if *port != 0 {
		cfg.Endpoint.Port = *port
	}
	if *path != "" {
		cfg.Endpoint.Path = *path
	}
	if *timeout != 0 {
		cfg.Endpoint.Timeout = *timeout
	}
	if *attempts != 0 {
		cfg.Retry.MaxAttempts = *attempts
	}
	if *metricsFile != "" {
		cfg.Metrics.Textfile = *metricsFile
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	log.Configure(log.Config{Level: cfg.Logging.Level, Output: stderr, Service: "tp-endpoint-poc"})
	logger := log.WithComponent("endpoint")
	defer func() {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn().Err(err).Msg("metrics not written")
		}
	}()

	guard := guardrail.NewShapeGuardrail(cfg.Guardrail)
	input, err := loadInput(*inputPath, cfg, guard)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	client := endpoint.NewClient(cfg.Endpoint, cfg.Retry, guard, logger)
	logger.Info().Str("url", client.URL().String()).Ints("shape", input.Shape).Msg("sending tensor")

	start := time.Now()
	result, err := client.Put(ctx, input)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	if err := endpoint.ValidateResult(result, cfg.Image); err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	stats, err := endpoint.Summarize(result)
	if err != nil {
		logger.Debug().Err(err).Msg("channel summary unavailable")
	}
	for i, s := range stats {
		logger.Info().
			Int("channel", i).
			Float64("mean", s.Mean).
			Float64("stddev", s.StdDev).
			Float64("min", s.Min).
			Float64("max", s.Max).
			Msg("channel summary")
	}
	logger.Info().Dur("elapsed", time.Since(start)).Ints("result_shape", result.Shape).Msg("result validated")

	fmt.Fprintln(stdout, "Success!")
	return 0
}

func loadInput(path string, cfg *config.Config, guard *guardrail.ShapeGuardrail) (*ndarray.Array, error) {
	if path == "" {
		return endpoint.MakeInput(cfg.Image), nil
	}
	input, err := ndarray.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := guard.Validate(input); err != nil {
		return nil, err
	}
	want := []int{cfg.Image.Channels, cfg.Image.Rows, cfg.Image.Cols}
	if !ndarray.EqualShape(input.Shape, want) {
		l := log.WithComponent("endpoint")
		l.Warn().Ints("shape", input.Shape).Ints("expected", want).Msg("input shape differs from model geometry")
	}
	return input, nil
}
