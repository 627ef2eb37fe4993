package supervise

import "log/slog"

// NopLogger returns a logger that discards all output. Useful as an explicit
// option value when the default logging should be silenced.
func NopLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
