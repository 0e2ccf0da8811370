// Package app is the instrumented demo application.
//
// New wires the tracer, exporters, propagator, cold-launch cell and REST
// client from a config.Config. The cold-launch span returned by RootContext
// is the parent of every phase: NotifyAppLaunch, NotifyBecomingInteractive,
// Auth, CheckIn, CheckOut, DeviceRebooted and LogOut. Each phase derives its
// own baggage and runs inside a Flow scope, so the backend receives the
// launch identity and the phase's keys in uberctx-* headers.
package app
