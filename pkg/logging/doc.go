// Package logging provides structured logging configuration for hellotel.
//
// This package wraps log/slog so every component logs the same way. It
// supports configurable log levels and output formats, fan-out to several
// handlers, and decoration of records with the active trace and span ids.
//
// # Usage
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatJSON,
//	    Extractor: func(ctx context.Context) (string, string) {
//	        return tracing.TraceIDFromContext(ctx), tracing.SpanIDFromContext(ctx)
//	    },
//	})
//
//	logger.InfoContext(ctx, "check-in sent", "status", 200)
//
// # Integration
//
// Components accept a *slog.Logger through an option. If no logger is
// provided, they use logging.Nop().
package logging
