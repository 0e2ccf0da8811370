package requestlog

import "time"

// Entry captures one request received by the mock backend together with the
// telemetry context decoded from its headers.
type Entry struct {
	// ID is a unique identifier for the log entry.
	ID string `json:"id"`

	// Timestamp is when the request was received.
	Timestamp time.Time `json:"timestamp"`

	// Method is the HTTP method.
	Method string `json:"method"`

	// Path is the request URL path.
	Path string `json:"path"`

	// QueryString is the raw query string.
	QueryString string `json:"queryString,omitempty"`

	// Headers are the request headers (multi-value).
	Headers map[string][]string `json:"headers,omitempty"`

	// Body is the request body content (truncated to MaxBodySize).
	Body string `json:"body,omitempty"`

	// BodySize is the original body size in bytes.
	BodySize int `json:"bodySize"`

	// RemoteAddr is the client address.
	RemoteAddr string `json:"remoteAddr"`

	// MatchedRoute is the name of the route that answered (empty if none).
	MatchedRoute string `json:"matchedRoute,omitempty"`

	// ResponseStatus is the status code returned.
	ResponseStatus int `json:"responseStatus"`

	// ResponseBody is the response body content.
	ResponseBody string `json:"responseBody,omitempty"`

	// DurationMs is the request processing time in milliseconds.
	DurationMs int `json:"durationMs"`

	// Error contains an error message if the request failed.
	Error string `json:"error,omitempty"`

	// TraceID and SpanID identify the caller's span, empty if no valid
	// trace header was received.
	TraceID string `json:"traceId,omitempty"`
	SpanID  string `json:"spanId,omitempty"`

	// Sampled is the caller's sampling decision.
	Sampled bool `json:"sampled,omitempty"`

	// Baggage holds the propagated baggage entries.
	Baggage map[string]string `json:"baggage,omitempty"`
}

// MaxBodySize is the number of body bytes kept on an Entry.
const MaxBodySize = 10 * 1024

// HasTrace reports whether the request carried a valid trace context.
func (e *Entry) HasTrace() bool {
	return e.TraceID != ""
}

// Header returns the first value of a recorded header. Names are matched
// exactly as stored, which for HTTP is the canonical form.
func (e *Entry) Header(name string) string {
	if vs := e.Headers[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}
