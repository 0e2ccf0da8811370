package mockserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/getmockd/hellotel/pkg/config"
	"github.com/getmockd/hellotel/pkg/logging"
	"github.com/getmockd/hellotel/pkg/requestlog"
	"github.com/getmockd/hellotel/pkg/tracing"
)

// RequestsPath is the request log endpoint.
const RequestsPath = "/__hellotel/requests"

// MetricsPath is the Prometheus endpoint.
const MetricsPath = "/metrics"

// ErrAlreadyRunning is returned by Start on a running server.
var ErrAlreadyRunning = errors.New("server is already running")

// Server is the mock backend.
type Server struct {
	cfg        config.ServerConfig
	routes     []route
	store      *requestlog.MemoryStore
	propagator tracing.Propagator
	tracer     *tracing.Tracer
	metrics    *Metrics
	log        *slog.Logger
	handler    http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	running    bool
	startTime  time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithStore replaces the request log.
func WithStore(store *requestlog.MemoryStore) Option {
	return func(s *Server) {
		if store != nil {
			s.store = store
		}
	}
}

// WithPropagator sets the propagator used to decode incoming headers.
// The default is Jaeger.
func WithPropagator(p tracing.Propagator) Option {
	return func(s *Server) {
		if p != nil {
			s.propagator = p
		}
	}
}

// WithTracer enables a SERVER span per mock request, continuing the caller's
// trace.
func WithTracer(t *tracing.Tracer) Option {
	return func(s *Server) {
		s.tracer = t
	}
}

// New creates a server answering routes under cfg.BasePath.
func New(cfg config.ServerConfig, routes []config.Route, opts ...Option) *Server {
	s := &Server{
		cfg: cfg,
		log: logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes = compileRoutes(routes, s.log)
	if s.store == nil {
		s.store = requestlog.NewMemoryStore(cfg.MaxRecorded)
	}
	if s.propagator == nil {
		s.propagator = tracing.NewJaegerPropagator(tracing.WithPropagatorLogger(s.log))
	}
	s.metrics = newMetrics(func() float64 { return float64(s.store.Count()) })

	mux := http.NewServeMux()
	mux.Handle(MetricsPath, s.metrics.Handler())
	mux.HandleFunc(RequestsPath, s.handleRequests)
	mux.HandleFunc("/", s.handleMock)
	s.handler = TracingMiddleware(s.tracer, s.propagator)(mux)
	return s
}

// Handler returns the server's HTTP handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Requests returns the request log.
func (s *Server) Requests() *requestlog.MemoryStore {
	return s.store
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start listens on the configured address and serves in the background.
// A port of 0 picks a free port; Addr reports it.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("starting mock backend", "addr", ln.Addr().String(), "base_path", s.cfg.BasePath)
	srv := s.httpServer
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("mock backend error", "error", err)
		}
	}()

	s.running = true
	s.startTime = time.Now()
	return nil
}

// Addr returns the listening address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// BaseURL returns the absolute URL of the route base path.
func (s *Server) BaseURL() string {
	return "http://" + s.Addr() + s.basePath()
}

// IsRunning reports whether Start succeeded and Shutdown was not yet called.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Shutdown gracefully stops the server. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	s.listener = nil

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("mock backend shutdown: %w", err)
	}
	s.log.Info("mock backend stopped", "uptime", time.Since(s.startTime).Round(time.Millisecond))
	return nil
}

func (s *Server) basePath() string {
	bp := s.cfg.BasePath
	if bp == "" {
		bp = "/"
	}
	if !strings.HasSuffix(bp, "/") {
		bp += "/"
	}
	return bp
}
