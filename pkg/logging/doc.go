// Package logging provides structured logging for postern with unified log
// handling and level filtering.
//
// The package wraps Go's standard slog with printf-style helpers that tag
// every entry with the emitting subsystem:
//
//	logging.Init(logging.LevelInfo, os.Stdout, false)
//	logging.Info("Gateway", "Registered %d tools", count)
//	logging.Error("OAuth", err, "Token refresh failed for user %s", userID)
//
// Levels are Debug, Info, Warn and Error; entries below the configured level
// are suppressed at the handler. Output is text by default and JSON when
// requested, which is the mode used by the serve command so log collectors
// can parse gateway logs.
//
// Session identifiers are only ever logged through TruncateSessionID, which
// keeps a short prefix for correlation without exposing the full value.
package logging
