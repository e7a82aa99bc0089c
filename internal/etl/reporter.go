package etl

import "log/slog"

// Reporter receives run observations from the core components: stage
// completions at info level, recoverable drops at warn level with counts.
// It is injected explicitly rather than read from global state so tests can
// capture what a component reported.
//
// *slog.Logger satisfies Reporter directly.
type Reporter interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

var _ Reporter = (*slog.Logger)(nil)
