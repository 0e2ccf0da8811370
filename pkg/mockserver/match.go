package mockserver

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/getmockd/hellotel/pkg/config"
	"github.com/getmockd/hellotel/pkg/requestlog"
)

// Match scores. The route with the highest total wins; ties go to the route
// declared first.
const (
	scorePathExact       = 15
	scorePathNamedParams = 12
	scorePathWildcard    = 10
	scoreMethod          = 10
	scoreHeader          = 10
	scoreHeaderPattern   = 8
	scoreCondition       = 10
)

// route is a config.Route with its compiled When condition.
type route struct {
	config.Route
	when *vm.Program
	// broken routes have a When that failed to compile and never match.
	broken bool
}

func compileRoutes(routes []config.Route, log *slog.Logger) []route {
	out := make([]route, len(routes))
	for i, r := range routes {
		out[i] = route{Route: r}
		if r.When == "" {
			continue
		}
		program, err := config.CompileWhen(r.When)
		if err != nil {
			log.Warn("route condition does not compile, route disabled", "route", r.Name, "error", err)
			out[i].broken = true
			continue
		}
		out[i].when = program
	}
	return out
}

// newRequestEnv exposes a recorded request to route conditions.
func newRequestEnv(r *http.Request, e *requestlog.Entry) *config.RequestEnv {
	env := &config.RequestEnv{
		Method:  e.Method,
		Path:    e.Path,
		Query:   make(map[string]string),
		Headers: make(map[string]string, len(r.Header)),
		Body:    e.Body,
		TraceID: e.TraceID,
		Sampled: e.Sampled,
		Baggage: e.Baggage,
	}
	if env.Baggage == nil {
		env.Baggage = map[string]string{}
	}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			env.Query[k] = v[0]
		}
	}
	for k, v := range r.Header {
		if len(v) > 0 {
			env.Headers[strings.ToLower(k)] = v[0]
		}
	}
	return env
}

// match returns the best route for r. Paths are compared relative to the base
// path, ignoring a trailing slash. env may be nil when no route has a
// condition.
func (s *Server) match(r *http.Request, env *config.RequestEnv) (config.Route, bool) {
	rel, ok := strings.CutPrefix(r.URL.Path, s.basePath())
	if !ok {
		return config.Route{}, false
	}
	rel = strings.TrimSuffix(rel, "/")

	best, bestScore := -1, 0
	for i, rt := range s.routes {
		score := scoreRoute(rt, r.Method, rel, r.Header, env)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return config.Route{}, false
	}
	return s.routes[best].Route, true
}

// scoreRoute returns 0 when route does not match.
func scoreRoute(rt route, method, path string, h http.Header, env *config.RequestEnv) int {
	if rt.broken {
		return 0
	}
	score := 0
	if rt.Method != "" {
		if !strings.EqualFold(rt.Method, method) {
			return 0
		}
		score += scoreMethod
	}

	p := matchPath(strings.TrimSuffix(rt.Path, "/"), path)
	if p == 0 {
		return 0
	}
	score += p

	for name, want := range rt.MatchHeaders {
		hs := matchHeader(h.Get(name), want)
		if hs == 0 {
			return 0
		}
		score += hs
	}

	if rt.when != nil {
		if env == nil {
			return 0
		}
		out, err := expr.Run(rt.when, *env)
		if ok, _ := out.(bool); err != nil || !ok {
			return 0
		}
		score += scoreCondition
	}
	return score
}

// matchPath supports exact paths, {name} segments matching any single
// segment, a trailing /* matching any suffix, and doublestar globs.
func matchPath(pattern, path string) int {
	if pattern == path {
		return scorePathExact
	}
	if strings.Contains(pattern, "{") && matchNamedParams(pattern, path) {
		return scorePathNamedParams
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return scorePathWildcard
		}
	}
	if strings.ContainsAny(pattern, "*?[") {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return scorePathWildcard
		}
	}
	return 0
}

func matchNamedParams(pattern, path string) bool {
	want := strings.Split(strings.Trim(pattern, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	if len(want) != len(got) {
		return false
	}
	for i, seg := range want {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if got[i] == "" {
				return false
			}
			continue
		}
		if seg != got[i] {
			return false
		}
	}
	return true
}

// matchHeader compares a header value against want. A want containing * is a
// prefix*, *suffix or *contains* pattern and never matches an absent header.
func matchHeader(got, want string) int {
	if !strings.Contains(want, "*") {
		if got == want {
			return scoreHeader
		}
		return 0
	}
	if got == "" {
		return 0
	}

	var ok bool
	switch {
	case strings.HasPrefix(want, "*") && strings.HasSuffix(want, "*"):
		ok = strings.Contains(got, strings.Trim(want, "*"))
	case strings.HasSuffix(want, "*"):
		ok = strings.HasPrefix(got, strings.TrimSuffix(want, "*"))
	case strings.HasPrefix(want, "*"):
		ok = strings.HasSuffix(got, strings.TrimPrefix(want, "*"))
	default:
		ok, _ = doublestar.Match(want, got)
	}
	if ok {
		return scoreHeaderPattern
	}
	return 0
}
