package mockserver

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getmockd/hellotel/pkg/httputil"
	"github.com/getmockd/hellotel/pkg/requestlog"
	"github.com/getmockd/hellotel/pkg/tracing"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	body   strings.Builder
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	if w.body.Len() < requestlog.MaxBodySize {
		w.body.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

func (s *Server) handleMock(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, requestlog.MaxBodySize+1))
	bodySize := len(body)
	if len(body) > requestlog.MaxBodySize {
		body = body[:requestlog.MaxBodySize]
	}

	tc := s.propagator.Extract(tracing.Background(), tracing.HeaderCarrier(r.Header))

	entry := &requestlog.Entry{
		Timestamp:   start,
		Method:      r.Method,
		Path:        r.URL.Path,
		QueryString: r.URL.RawQuery,
		Headers:     r.Header.Clone(),
		Body:        string(body),
		BodySize:    bodySize,
		RemoteAddr:  r.RemoteAddr,
	}
	if sc := tc.SpanContext(); sc.IsValid() {
		entry.TraceID = sc.TraceID.String()
		entry.SpanID = sc.SpanID.String()
		entry.Sampled = sc.Sampled
		s.metrics.observePropagated(sc.Sampled)
	}
	if b := tc.Baggage(); b.Len() > 0 {
		entry.Baggage = b.ToMap()
	}

	rec := &statusRecorder{ResponseWriter: w}
	metricPath := unmatchedPath

	switch route, ok := s.match(r, newRequestEnv(r, entry)); {
	case err != nil:
		entry.Error = err.Error()
		httputil.WriteError(rec, http.StatusBadRequest, "bad_request", "failed to read body")
	case !ok:
		entry.Error = "no matching route"
		httputil.WriteNotFound(rec, "no_route", "no route for "+r.Method+" "+r.URL.Path)
	default:
		entry.MatchedRoute = route.Name
		metricPath = r.URL.Path
		httputil.WriteBody(rec, route.Status, route.ContentType, route.Body)
	}

	elapsed := time.Since(start)
	entry.ResponseStatus = rec.status
	entry.ResponseBody = rec.body.String()
	entry.DurationMs = int(elapsed.Milliseconds())
	s.store.Log(entry)
	s.metrics.observe(r.Method, metricPath, rec.status, elapsed.Seconds())

	s.log.DebugContext(r.Context(), "mock request",
		"method", r.Method,
		"path", r.URL.Path,
		"route", entry.MatchedRoute,
		"status", rec.status,
		"trace_id", entry.TraceID,
		"baggage", len(entry.Baggage),
	)
}

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter, err := parseFilter(r)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid_filter", err.Error())
			return
		}
		entries := s.store.List(filter)
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"requests": entries,
			"count":    len(entries),
			"total":    s.store.Count(),
		})
	case http.MethodDelete:
		s.store.Clear()
		httputil.WriteNoContent(w)
	default:
		httputil.WriteMethodNotAllowed(w, "GET, DELETE")
	}
}

func parseFilter(r *http.Request) (*requestlog.Filter, error) {
	q := r.URL.Query()
	filter := &requestlog.Filter{
		Method:       q.Get("method"),
		Path:         q.Get("path"),
		MatchedRoute: q.Get("route"),
		TraceID:      q.Get("trace_id"),
		BaggageKey:   q.Get("baggage"),
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"status", &filter.StatusCode},
		{"limit", &filter.Limit},
		{"offset", &filter.Offset},
	}
	for _, p := range ints {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, &filterError{param: p.name, value: v}
		}
		*p.dst = n
	}
	return filter, nil
}

type filterError struct {
	param, value string
}

func (e *filterError) Error() string {
	return "invalid " + e.param + " " + strconv.Quote(e.value)
}
