package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// EnvPrefix prefixes every environment override, e.g. HELLOTEL_LOG_LEVEL.
const EnvPrefix = "hellotel"

// Exporter names accepted in TracingConfig.Exporters.
const (
	ExporterMemory = "memory"
	ExporterStdout = "stdout"
	ExporterLog    = "log"
	ExporterOTLP   = "otlp"
	ExporterNone   = "none"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete hellotel configuration.
type Config struct {
	Service ServiceConfig `yaml:"service" json:"service"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Client  ClientConfig  `yaml:"client" json:"client"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`

	// Routes are answered by the mock backend. File only.
	Routes []Route `yaml:"routes,omitempty" json:"routes,omitempty" ignored:"true"`

	// RouteFiles are glob patterns, relative to the config file, naming YAML
	// files whose routes are appended to Routes.
	RouteFiles []string `yaml:"routeFiles,omitempty" json:"routeFiles,omitempty" ignored:"true"`
}

// ServiceConfig names the instrumented service.
type ServiceConfig struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// ServerConfig holds mock backend configuration.
type ServerConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	BasePath string `yaml:"basePath" json:"basePath" split_words:"true"`
	// MaxRecorded caps the request log. Oldest entries are dropped first.
	MaxRecorded int `yaml:"maxRecorded" json:"maxRecorded" split_words:"true"`
}

// ClientConfig holds REST client configuration.
type ClientConfig struct {
	BaseURL string        `yaml:"baseURL" json:"baseURL" split_words:"true"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// TracingConfig selects propagation and export.
type TracingConfig struct {
	Propagators  []string `yaml:"propagators" json:"propagators"`
	Exporters    []string `yaml:"exporters" json:"exporters"`
	SampleRatio  float64  `yaml:"sampleRatio" json:"sampleRatio" split_words:"true"`
	OTLPEndpoint string   `yaml:"otlpEndpoint" json:"otlpEndpoint" split_words:"true"`
	OTLPInsecure bool     `yaml:"otlpInsecure" json:"otlpInsecure" split_words:"true"`
}

// Route is one canned mock backend response.
type Route struct {
	Name   string `yaml:"name" json:"name"`
	Method string `yaml:"method,omitempty" json:"method,omitempty"`
	// Path is relative to ServerConfig.BasePath. It may contain {name}
	// segments, a trailing /* or doublestar globs.
	Path string `yaml:"path" json:"path"`
	// MatchHeaders must all match. A value containing * is a prefix*,
	// *suffix or *contains* pattern.
	MatchHeaders map[string]string `yaml:"matchHeaders,omitempty" json:"matchHeaders,omitempty"`
	Status       int               `yaml:"status" json:"status"`
	Body         string            `yaml:"body,omitempty" json:"body,omitempty"`
	ContentType  string            `yaml:"contentType,omitempty" json:"contentType,omitempty"`
	// When is an optional boolean expression over RequestEnv.
	When string `yaml:"when,omitempty" json:"when,omitempty"`
}

// RequestEnv is what a Route.When expression sees. Header names are
// lowercased and only the first value is kept.
type RequestEnv struct {
	Method  string            `expr:"method"`
	Path    string            `expr:"path"`
	Query   map[string]string `expr:"query"`
	Headers map[string]string `expr:"headers"`
	Body    string            `expr:"body"`
	TraceID string            `expr:"trace_id"`
	Sampled bool              `expr:"sampled"`
	Baggage map[string]string `expr:"baggage"`
}

// CompileWhen compiles a Route.When expression against RequestEnv.
func CompileWhen(when string) (*vm.Program, error) {
	return expr.Compile(when, expr.Env(RequestEnv{}), expr.AsBool())
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:    "hellotel",
			Version: "dev",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:8080",
			BasePath:    "/rt/v1/",
			MaxRecorded: 1000,
		},
		Client: ClientConfig{
			BaseURL: "http://127.0.0.1:8080/rt/v1/",
			Timeout: 10 * time.Second,
		},
		Tracing: TracingConfig{
			Propagators: []string{"jaeger"},
			Exporters:   []string{ExporterMemory, ExporterLog},
			SampleRatio: 1,
		},
		Routes: DefaultRoutes(),
	}
}

// DefaultRoutes returns the demo backend's responses.
func DefaultRoutes() []Route {
	return []Route{
		{Name: "log-in", Method: "GET", Path: "log_in", MatchHeaders: map[string]string{"x-bypass": "1"}, Status: 200, Body: `{"token":"1234"}`},
		{Name: "log-in-denied", Method: "GET", Path: "log_in", Status: 401, Body: `{"error":{"code":1,"message":"Incorrect password"}}`},
		{Name: "app-launch", Method: "POST", Path: "app_launch", Status: 200, Body: `{"status":"acknowledged"}`},
		{Name: "become-interactive", Method: "POST", Path: "become_interactive", Status: 200, Body: `{"status":"recorded"}`},
		{Name: "device-rebooted", Method: "POST", Path: "device_rebooted", Status: 200, Body: `{"status":"tracked"}`},
		{Name: "check-in", Method: "POST", Path: "check_in", Status: 200, Body: `{"status":"Checked In"}`},
		{Name: "check-out", Method: "GET", Path: "check_out", Status: 200, Body: `{"status":"Checked Out"}`},
		{Name: "log-out", Method: "GET", Path: "log_out", Status: 200, Body: `{"logged_out":true}`},
	}
}

// Validate checks the configuration and returns every problem found, each
// wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...)))
	}

	if strings.TrimSpace(c.Service.Name) == "" {
		fail("service.name is required")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		fail("log.level %q must be debug, info, warn or error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		fail("log.format %q must be text or json", c.Log.Format)
	}

	if c.Server.Addr == "" {
		fail("server.addr is required")
	}
	if !strings.HasPrefix(c.Server.BasePath, "/") {
		fail("server.basePath %q must start with /", c.Server.BasePath)
	}
	if c.Server.MaxRecorded <= 0 {
		fail("server.maxRecorded must be positive")
	}

	if u, err := url.Parse(c.Client.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		fail("client.baseURL %q must be an absolute URL", c.Client.BaseURL)
	}
	if c.Client.Timeout <= 0 {
		fail("client.timeout must be positive")
	}

	for _, p := range c.Tracing.Propagators {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "jaeger", "tracecontext", "w3c":
		default:
			fail("unknown propagator %q", p)
		}
	}
	for _, e := range c.Tracing.Exporters {
		switch strings.ToLower(strings.TrimSpace(e)) {
		case ExporterMemory, ExporterStdout, ExporterLog, ExporterNone:
		case ExporterOTLP:
			if c.Tracing.OTLPEndpoint == "" {
				fail("tracing.otlpEndpoint is required by the otlp exporter")
			}
		default:
			fail("unknown exporter %q", e)
		}
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		fail("tracing.sampleRatio %v must be between 0 and 1", c.Tracing.SampleRatio)
	}

	for i, r := range c.Routes {
		if r.Path == "" || strings.HasPrefix(r.Path, "/") {
			fail("routes[%d].path %q must be relative to the base path", i, r.Path)
		}
		if !doublestar.ValidatePattern(r.Path) {
			fail("routes[%d].path %q is not a valid pattern", i, r.Path)
		}
		if r.Status < 100 || r.Status > 599 {
			fail("routes[%d].status %d is not an HTTP status", i, r.Status)
		}
		if r.When != "" {
			if _, err := CompileWhen(r.When); err != nil {
				fail("routes[%d].when: %v", i, err)
			}
		}
	}

	return errors.Join(errs...)
}
