package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/yourusername/tp-endpoint-poc/internal/config"
	"github.com/yourusername/tp-endpoint-poc/internal/convert"
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

func usage(w io.Writer) {
	exts := make([]string, 0)
	for _, f := range ndarray.Formats() {
		exts = append(exts, f.Ext)
	}
	sort.Strings(exts)
	fmt.Fprintf(w, "Usage: npyconv [flags] <input> <output>\n\nSupported extensions: %s\n\n", strings.Join(exts, ", "))
}

// run converts one array file and returns the exit code: 0 on success,
// 1 on a failed conversion and 2 on bad usage.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("npyconv", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file")
	verify := fs.Bool("verify", false, "read the output back and compare it with the input")
	metricsFile := fs.String("metrics-file", "", "write metrics in textfile format to this path")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.Usage = func() {
		usage(stderr)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	if *metricsFile != "" {
		cfg.Metrics.Textfile = *metricsFile
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	log.Configure(log.Config{Level: cfg.Logging.Level, Output: stderr, Service: "npyconv"})
	logger := log.WithComponent("convert")
	defer func() {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn().Err(err).Msg("metrics not written")
		}
	}()

	c := convert.NewConverter(logger, guardrail.NewShapeGuardrail(cfg.Guardrail), *verify)
	res, err := c.Convert(ctx, fs.Arg(0), fs.Arg(1))
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "%s -> %s: shape %v, %d elements", fs.Arg(0), fs.Arg(1), res.Shape, res.Elements)
	if res.Verified {
		fmt.Fprintf(stdout, ", verified (max abs error %g)", res.MaxAbsError)
	}
	fmt.Fprintln(stdout)
	return 0
}
