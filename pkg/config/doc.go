// Package config loads hellotel configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables prefixed with HELLOTEL_. The result is validated
// before use.
//
//	cfg, err := config.Load("hellotel.yaml")
//	if err != nil {
//	    return err
//	}
//
// Environment variables map onto nested fields with underscores:
//
//	HELLOTEL_LOG_LEVEL=debug
//	HELLOTEL_CLIENT_BASE_URL=http://localhost:9000/rt/v1/
//	HELLOTEL_TRACING_PROPAGATORS=jaeger,tracecontext
//	HELLOTEL_TRACING_SAMPLE_RATIO=0.25
//
// Mock backend routes can only be set in the file:
//
//	routes:
//	  - name: check-in
//	    method: POST
//	    path: check_in
//	    status: 200
//	    body: '{"status":"Checked In"}'
//	  - name: check-out-session
//	    path: check_out
//	    status: 200
//	    when: baggage["session_id"] != "" && sampled
//	routeFiles:
//	  - routes/**/*.yaml
//
// Route files hold a routes list of their own and are appended in path order.
package config
