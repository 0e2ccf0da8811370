package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getmockd/hellotel/pkg/config"
	"github.com/getmockd/hellotel/pkg/coldlaunch"
	"github.com/getmockd/hellotel/pkg/logging"
	"github.com/getmockd/hellotel/pkg/restapi"
	"github.com/getmockd/hellotel/pkg/tracing"
)

// TracerName is the instrumentation name of the application's tracer.
const TracerName = "hellotel"

// App is the instrumented demo application. Everything it needs is built by
// New and owned by the App; there is no package-level state.
type App struct {
	cfg        *config.Config
	log        *slog.Logger
	tracer     *tracing.Tracer
	memory     *tracing.InMemoryExporter
	propagator tracing.Propagator
	cell       *coldlaunch.Cell
	api        *restapi.Client
	now        func() time.Time

	rootOnce    sync.Once
	rootStarted atomic.Bool
	root        tracing.Context
	endOnce     sync.Once

	tokenMu sync.RWMutex
	token   string

	shutdownOnce sync.Once
	shutdownErr  error
}

// Option configures an App.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	cell      *coldlaunch.Cell
	now       func() time.Time
	exporters []tracing.Exporter
	stdout    io.Writer
	ids       tracing.IDGenerator
	transport http.RoundTripper
}

// WithLogger sets the operational logger. By default one is built from the
// log section of the configuration.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCell supplies the cold-launch identity cell.
func WithCell(c *coldlaunch.Cell) Option {
	return func(o *options) { o.cell = c }
}

// WithClock sets the time source for baggage timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithExporter adds an exporter on top of the configured ones.
func WithExporter(e tracing.Exporter) Option {
	return func(o *options) {
		if e != nil {
			o.exporters = append(o.exporters, e)
		}
	}
}

// WithStdout sets where the stdout exporter writes.
func WithStdout(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// WithIDGenerator sets the tracer's id generator.
func WithIDGenerator(g tracing.IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithTransport sets the REST client's HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// New builds an App from cfg. ctx bounds exporter construction only.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{now: time.Now, stdout: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = NewLogger(cfg.Log, os.Stderr)
	}
	if o.cell == nil {
		o.cell = coldlaunch.NewCell(coldlaunch.WithClock(o.now))
	}

	a := &App{
		cfg:  cfg,
		log:  o.logger,
		cell: o.cell,
		now:  o.now,
	}

	exporters, err := a.buildExporters(ctx, o.stdout)
	if err != nil {
		return nil, err
	}
	exporters = append(exporters, o.exporters...)

	propagator, err := tracing.PropagatorByName(a.log, cfg.Tracing.Propagators...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	a.propagator = propagator

	tracerOpts := []tracing.TracerOption{
		tracing.WithVersion(cfg.Service.Version),
		tracing.WithSampler(samplerFor(cfg.Tracing.SampleRatio)),
		tracing.WithLogger(a.log),
	}
	if o.ids != nil {
		tracerOpts = append(tracerOpts, tracing.WithIDGenerator(o.ids))
	}
	for _, e := range exporters {
		tracerOpts = append(tracerOpts, tracing.WithExporter(e))
	}
	a.tracer = tracing.NewTracer(TracerName, tracerOpts...)

	clientOpts := []restapi.Option{
		restapi.WithTimeout(cfg.Client.Timeout),
		restapi.WithPropagator(propagator),
		restapi.WithLogger(a.log),
	}
	if o.transport != nil {
		clientOpts = append(clientOpts, restapi.WithTransport(o.transport))
	}
	a.api = restapi.New(cfg.Client.BaseURL, a.tracer, clientOpts...)

	a.log.Debug("app initialized",
		"service", cfg.Service.Name,
		"exporters", len(exporters),
		"propagators", strings.Join(propagator.Fields(), ","),
	)
	return a, nil
}

// NewLogger builds the application logger. Records logged with a context
// carrying a span get trace_id and span_id attributes.
func NewLogger(cfg config.LogConfig, w io.Writer, mirrors ...io.Writer) *slog.Logger {
	return logging.New(logging.Config{
		Level:     logging.ParseLevel(cfg.Level),
		Format:    logging.ParseFormat(cfg.Format),
		Output:    w,
		Mirrors:   mirrors,
		Extractor: traceExtractor,
	})
}

func traceExtractor(ctx context.Context) (string, string) {
	return tracing.TraceIDFromContext(ctx), tracing.SpanIDFromContext(ctx)
}

func (a *App) buildExporters(ctx context.Context, stdout io.Writer) ([]tracing.Exporter, error) {
	var out []tracing.Exporter
	for _, name := range a.cfg.Tracing.Exporters {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case config.ExporterMemory:
			if a.memory == nil {
				a.memory = tracing.NewInMemoryExporter()
				out = append(out, a.memory)
			}
		case config.ExporterStdout:
			out = append(out, tracing.NewStdoutExporter(tracing.WithWriter(stdout)))
		case config.ExporterLog:
			out = append(out, tracing.NewLogExporter(a.log, slog.LevelInfo))
		case config.ExporterOTLP:
			exp, err := tracing.NewOTLPHTTPExporter(ctx, a.cfg.Tracing.OTLPEndpoint, a.cfg.Service.Name, a.cfg.Tracing.OTLPInsecure)
			if err != nil {
				return nil, err
			}
			out = append(out, exp)
		case config.ExporterNone:
			out = append(out, tracing.NewNoopExporter())
		default:
			return nil, fmt.Errorf("%w: unknown exporter %q", config.ErrInvalidConfig, name)
		}
	}
	return out, nil
}

func samplerFor(ratio float64) tracing.Sampler {
	switch {
	case ratio >= 1:
		return tracing.AlwaysSample{}
	case ratio <= 0:
		return tracing.NeverSample{}
	default:
		return tracing.NewRatioSampler(ratio)
	}
}

// Tracer returns the application's tracer.
func (a *App) Tracer() *tracing.Tracer {
	return a.tracer
}

// Propagator returns the configured propagator.
func (a *App) Propagator() tracing.Propagator {
	return a.propagator
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.log
}

// FinishedSpans returns the spans kept by the memory exporter, in end order.
// It is empty when the memory exporter is not configured.
func (a *App) FinishedSpans() []tracing.SpanData {
	if a.memory == nil {
		return nil
	}
	return a.memory.FinishedSpans()
}

// Shutdown ends the cold-launch span if still open and shuts the exporters
// down. Later calls return the first result.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		if a.rootStarted.Load() {
			a.EndColdLaunch()
		}
		err := a.tracer.Shutdown(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("exporter shutdown failed", "error", err)
		}
		a.shutdownErr = err
	})
	return a.shutdownErr
}
