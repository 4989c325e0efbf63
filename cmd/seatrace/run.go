package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seatrace/internal/booking"
	"seatrace/internal/collector"
	"seatrace/internal/config"
	"seatrace/internal/controller"
	"seatrace/internal/metrics"
	"seatrace/internal/progress"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// runOptions are the reporting flags shared by run and conflict.
type runOptions struct {
	output      string
	summaryFile string
	metricsAddr string
	quiet       bool
	verbose     bool
}

func (o *runOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.output, "output", "text", "report format: text or json")
	f.StringVar(&o.summaryFile, "summary-file", "", "also write the JSON report to this file")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running, e.g. :9090")
	f.BoolVar(&o.quiet, "quiet", false, "suppress the live progress line")
	f.BoolVar(&o.verbose, "verbose", false, "dump every request and response to stderr")
}

func (o *runOptions) validate() error {
	if o.output != "text" && o.output != "json" {
		return fmt.Errorf("--output must be 'text' or 'json', got %q", o.output)
	}
	return nil
}

var (
	runConfigPath string
	runWarmup     int
	runOpts       runOptions
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scenarios of a config file",
	Long: `Reset the target once, run every configured scenario concurrently from
its start offset and print the report.

Exit status is 0 on success, 1 when thresholds failed or a protocol
violation was detected and 2 on usage or configuration errors.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runOpts.validate(); err != nil {
			return err
		}
		cfg, err := config.LoadConfig(runConfigPath)
		if err != nil {
			return err
		}
		if runWarmup > 0 {
			cfg.Execution.WarmupIterations = runWarmup
		}
		return execute(cmd.Context(), cfg, runOpts)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "path to YAML config file (required)")
	runCmd.Flags().IntVar(&runWarmup, "warmup", 0, "warmup iterations per actor before outcomes count")
	_ = runCmd.MarkFlagRequired("config")
	runOpts.register(runCmd)
	rootCmd.AddCommand(runCmd)
}

// execute runs cfg to completion and renders the report. A non-zero verdict
// is returned as an exitCode.
func execute(ctx context.Context, cfg *config.Config, opts runOptions) error {
	prog := progress.NewProgress(nil, nil, opts.quiet)
	log, err := newLogger(prog)
	if err != nil {
		return err
	}

	var debug *booking.DebugLogger
	if opts.verbose {
		debug = booking.NewDebugLogger(prog)
	}

	ctrl, err := controller.New(cfg, log, debug)
	if err != nil {
		return err
	}
	prog.Watch(ctrl.Collector(), ctrl.Aggregator())

	if opts.metricsAddr != "" {
		stop := serveMetrics(opts.metricsAddr, ctrl.Aggregator(), log)
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	prog.Start()
	res := ctrl.Run(ctx)
	prog.Stop()
	if res.Interrupted {
		log.Warn().Msg("run interrupted, thresholds were not evaluated")
	}

	writeReport(os.Stdout, opts.output, res)
	if opts.summaryFile != "" {
		if err := writeSummaryFile(opts.summaryFile, res); err != nil {
			return err
		}
		log.Info().Str("path", opts.summaryFile).Msg("summary written")
	}

	if code := res.ExitCode(); code != controller.ExitSuccess {
		return exitCode(code)
	}
	return nil
}

func writeReport(w io.Writer, format string, res *controller.Result) {
	if format == "json" {
		collector.FormatJSON(w, res.Metrics, &res.Summary, res.Thresholds)
		return
	}
	collector.FormatText(w, res.Metrics, &res.Summary, res.Thresholds)
}

func writeSummaryFile(path string, res *controller.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating summary file: %w", err)
	}
	collector.FormatJSON(f, res.Metrics, &res.Summary, res.Thresholds)
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing summary file: %w", err)
	}
	return nil
}

// serveMetrics exposes the aggregator on addr until the returned func is called.
func serveMetrics(addr string, agg *metrics.Aggregator, log zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(agg.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
