package mockserver

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"github.com/getmockd/hellotel/pkg/tracing"
)

// skipTracingPaths are infrastructure endpoints that never get a span.
var skipTracingPaths = map[string]bool{
	MetricsPath:    true,
	RequestsPath:   true,
	"/favicon.ico": true,
}

// TracingMiddleware starts a SERVER span for every request, continuing the
// trace decoded from the request headers by propagator. The span and the
// caller's baggage are stored in the request's context.Context.
//
// If tracer is nil, the handler is returned unchanged.
func TracingMiddleware(tracer *tracing.Tracer, propagator tracing.Propagator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tracer == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipTracingPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			parent := propagator.Extract(tracing.FromContext(r.Context()), tracing.HeaderCarrier(r.Header))
			attrs := []attribute.KeyValue{
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
				attribute.String("server.address", r.Host),
			}
			if ua := r.UserAgent(); ua != "" {
				attrs = append(attrs, attribute.String("user_agent.original", ua))
			}
			if r.ContentLength > 0 {
				attrs = append(attrs, attribute.Int64("http.request.body.size", r.ContentLength))
			}

			span := tracer.Start(parent, fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path),
				tracing.WithKind(tracing.SpanKindServer),
				tracing.WithAttributes(attrs...),
			)
			defer span.End()

			wrapped := &statusCapturingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(tracing.ContextWith(r.Context(), parent.WithSpan(span))))

			_ = span.SetAttributes(attribute.Int("http.response.status_code", wrapped.statusCode))
			switch {
			case wrapped.statusCode >= 500:
				_ = span.SetStatus(tracing.StatusError, fmt.Sprintf("HTTP server error: %d", wrapped.statusCode))
			case wrapped.statusCode >= 400:
				_ = span.SetStatus(tracing.StatusError, fmt.Sprintf("HTTP client error: %d", wrapped.statusCode))
			default:
				_ = span.SetStatus(tracing.StatusOK, "")
			}
		})
	}
}

// statusCapturingResponseWriter wraps http.ResponseWriter to capture the status code.
type statusCapturingResponseWriter struct {
	http.ResponseWriter
	statusCode    int
	headerWritten bool
}

// WriteHeader captures the status code before writing the header.
func (w *statusCapturingResponseWriter) WriteHeader(code int) {
	if !w.headerWritten {
		w.statusCode = code
		w.headerWritten = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Write captures status code if not already written (implicit 200 OK).
func (w *statusCapturingResponseWriter) Write(b []byte) (int, error) {
	if !w.headerWritten {
		w.statusCode = http.StatusOK
		w.headerWritten = true
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController support.
func (w *statusCapturingResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
