// Package restapi is a resty client for the demo backend that opens a CLIENT
// span per call and propagates it, with the caller's baggage, in the request
// headers.
//
//	c := restapi.New("http://127.0.0.1:8080/rt/v1/", tracer)
//	tok, err := c.LogIn(ctx, tc, true)
package restapi
