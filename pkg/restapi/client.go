package restapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/getmockd/hellotel/pkg/logging"
	"github.com/getmockd/hellotel/pkg/tracing"
)

// Header names understood by the backend.
const (
	HeaderToken  = "x-token"
	HeaderBypass = "x-bypass"
)

// ErrUnexpectedStatus is returned for any response outside 2xx.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// Client calls the demo REST API. Every call runs in its own CLIENT span whose
// context is injected into the request headers.
type Client struct {
	resty      *resty.Client
	tracer     *tracing.Tracer
	propagator tracing.Propagator
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.resty.SetTimeout(d)
		}
	}
}

// WithPropagator sets the propagator used to inject headers. The default is
// Jaeger.
func WithPropagator(p tracing.Propagator) Option {
	return func(c *Client) {
		if p != nil {
			c.propagator = p
		}
	}
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.resty.SetTransport(rt)
		}
	}
}

// New creates a client for baseURL. Spans are started on tracer.
func New(baseURL string, tracer *tracing.Tracer, opts ...Option) *Client {
	c := &Client{
		resty: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10*time.Second).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", "hellotel/1.0"),
		tracer: tracer,
		log:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.propagator == nil {
		c.propagator = tracing.NewJaegerPropagator(tracing.WithPropagatorLogger(c.log))
	}
	c.resty.OnBeforeRequest(c.inject)
	return c
}

// inject writes the telemetry context carried by the request's
// context.Context into its headers.
func (c *Client) inject(_ *resty.Client, r *resty.Request) error {
	tc := tracing.FromContext(r.Context())
	c.propagator.Inject(tc, tracing.HeaderCarrier(r.Header))
	return nil
}

type call struct {
	method  string
	path    string
	headers map[string]string
	body    any
	result  any
}

// do executes one call in a CLIENT span that is a child of parent.
func (c *Client) do(ctx context.Context, parent tracing.Context, in call) error {
	span := c.tracer.Start(parent, in.method+" "+in.path,
		tracing.WithKind(tracing.SpanKindClient),
		tracing.WithAttributes(
			attribute.String("http.request.method", in.method),
			attribute.String("url.path", in.path),
		),
	)
	defer span.End()

	req := c.resty.R().
		SetContext(tracing.ContextWith(ctx, parent.WithSpan(span))).
		SetHeaders(in.headers)
	if in.body != nil {
		req.SetBody(in.body)
	}
	if in.result != nil {
		req.SetResult(in.result)
	}

	resp, err := req.Execute(in.method, in.path)
	if err != nil {
		_ = span.SetStatus(tracing.StatusError, err.Error())
		c.log.Debug("request failed", "method", in.method, "path", in.path, "error", err)
		return fmt.Errorf("%s %s: %w", in.method, in.path, err)
	}

	status := resp.StatusCode()
	_ = span.SetAttributes(attribute.Int("http.response.status_code", status))
	if !resp.IsSuccess() {
		_ = span.SetStatus(tracing.StatusError, resp.Status())
		return fmt.Errorf("%s %s: %w: %d", in.method, in.path, ErrUnexpectedStatus, status)
	}
	_ = span.SetStatus(tracing.StatusOK, "")
	c.log.Debug("request done", "method", in.method, "path", in.path, "status", status,
		"trace_id", span.SpanContext().TraceID.String())
	return nil
}

// AppLaunch reports a cold launch.
func (c *Client) AppLaunch(ctx context.Context, tc tracing.Context, data ColdLaunchData, token string) (StatusResult, error) {
	var out StatusResult
	err := c.do(ctx, tc, call{
		method:  http.MethodPost,
		path:    "app_launch",
		headers: map[string]string{HeaderToken: token},
		body:    data,
		result:  &out,
	})
	return out, err
}

// BecomeInteractive reports that the first screen became interactive.
func (c *Client) BecomeInteractive(ctx context.Context, tc tracing.Context, data BecomeInteractiveData) (StatusResult, error) {
	var out StatusResult
	err := c.do(ctx, tc, call{method: http.MethodPost, path: "become_interactive", body: data, result: &out})
	return out, err
}

// LogIn requests a token. With bypass set the backend skips the password check.
func (c *Client) LogIn(ctx context.Context, tc tracing.Context, bypass bool) (UserToken, error) {
	flag := "0"
	if bypass {
		flag = "1"
	}
	var out UserToken
	err := c.do(ctx, tc, call{
		method:  http.MethodGet,
		path:    "log_in",
		headers: map[string]string{HeaderBypass: flag},
		result:  &out,
	})
	return out, err
}

// LogOut ends the session.
func (c *Client) LogOut(ctx context.Context, tc tracing.Context) (LogOutStatus, error) {
	var out LogOutStatus
	err := c.do(ctx, tc, call{method: http.MethodGet, path: "log_out", result: &out})
	return out, err
}

// CheckIn sends the current locations.
func (c *Client) CheckIn(ctx context.Context, tc tracing.Context, loc LocationModel, token string) (StatusResult, error) {
	var out StatusResult
	err := c.do(ctx, tc, call{
		method:  http.MethodPost,
		path:    "check_in",
		headers: map[string]string{HeaderToken: token},
		body:    loc,
		result:  &out,
	})
	return out, err
}

// CheckOut checks the user out.
func (c *Client) CheckOut(ctx context.Context, tc tracing.Context) (StatusResult, error) {
	var out StatusResult
	err := c.do(ctx, tc, call{method: http.MethodGet, path: "check_out", result: &out})
	return out, err
}

// DeviceRebooted reports a device reboot.
func (c *Client) DeviceRebooted(ctx context.Context, tc tracing.Context, data DeviceRebootedData) (StatusResult, error) {
	var out StatusResult
	err := c.do(ctx, tc, call{method: http.MethodPost, path: "device_rebooted", body: data, result: &out})
	return out, err
}
