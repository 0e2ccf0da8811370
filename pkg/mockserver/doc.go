// Package mockserver is the HTTP backend the demo application talks to.
//
// Every request is matched against the configured routes, answered with the
// best route's canned response and recorded, together with the Jaeger context
// decoded from its headers, in a requestlog store. The most specific route
// wins: exact paths beat {name} segments, which beat globs, and every
// matching method, header or when condition adds to a route's score. Routes
// with equal scores are tried in declaration order.
//
// Two extra endpoints are served next to the routes:
//
//	GET    /__hellotel/requests   recorded requests, newest first
//	DELETE /__hellotel/requests   clear the request log
//	GET    /metrics               Prometheus metrics
//
// Query parameters on the requests endpoint map onto requestlog.Filter:
// method, path, route, status, trace_id, baggage, limit and offset.
//
// With WithTracer, each mock request also gets a SERVER span that continues
// the caller's trace.
package mockserver
