package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/hellotel/pkg/mockserver"
	"github.com/getmockd/hellotel/pkg/tracing"
)

// serveFlags holds all flags for the serve command.
type serveFlags struct {
	addr       string
	printURL   bool
	traceSpans bool
}

var serveFlagVals serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mock backend",
	Long: `Run the mock backend until SIGINT or SIGTERM.

Every request is answered from the configured routes and recorded together
with the trace context and baggage decoded from its headers. Recorded
requests are listed at /__hellotel/requests and metrics are served at
/metrics.`,
	Example: `  # Serve on the configured address
  hellotel serve

  # Auto-assign a port and print the base URL
  hellotel serve --addr 127.0.0.1:0 --print-url

  # Log a server span per request, continuing the caller's trace
  hellotel serve --trace`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := &serveFlagVals
	serveCmd.Flags().StringVar(&f.addr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&f.printURL, "print-url", false, "Print the base URL to stdout on startup")
	serveCmd.Flags().BoolVar(&f.traceSpans, "trace", false, "Log a server span for every mock request")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	f := &serveFlagVals

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}

	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	propagator, err := tracing.PropagatorByName(log, cfg.Tracing.Propagators...)
	if err != nil {
		return err
	}

	opts := []mockserver.Option{
		mockserver.WithLogger(log.With("component", "mockserver")),
		mockserver.WithPropagator(propagator),
	}
	if f.traceSpans {
		tracer := tracing.NewTracer(cfg.Service.Name+"-mockserver",
			tracing.WithLogger(log),
			tracing.WithExporter(tracing.NewLogExporter(log.With("component", "spans"), slog.LevelInfo)),
		)
		defer func() { _ = tracer.Shutdown(context.Background()) }()
		opts = append(opts, mockserver.WithTracer(tracer))
	}

	srv := mockserver.New(cfg.Server, cfg.Routes, opts...)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start mock backend: %w", err)
	}

	if f.printURL {
		fmt.Fprintln(cmd.OutOrStdout(), srv.BaseURL())
	}
	log.Info("mock backend ready", "url", srv.BaseURL(), "routes", len(cfg.Routes))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down mock backend")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
