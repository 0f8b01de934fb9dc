// Package logging is the structured-logging seam of the certhub client.
// Components depend on Logger; cmd/cli plugs in the slog implementation.
package logging

import "context"

// Logger takes a message plus alternating key/value args:
//
//	log.Info(ctx, "session cleared", "reason", reason)
//
// Callers never pass tokens or passwords as values.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a logger that adds args to every record.
	With(args ...any) Logger
}
