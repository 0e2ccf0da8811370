// Package requestlog records requests received by the mock backend so tests
// and operators can inspect what was sent, including the trace context and
// baggage decoded from the request headers.
//
// It is distinct from operational logging, which uses log/slog.
//
//	store := requestlog.NewMemoryStore(1000)
//	store.Log(&requestlog.Entry{Method: "POST", Path: "/rt/v1/check_in"})
//
//	// Wait for the next request, like a mock web server's takeRequest.
//	entry, err := store.Next(ctx)
//
// This is a leaf package with no internal dependencies.
package requestlog
