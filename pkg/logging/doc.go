// Package logging wraps the standard library slog package with arc-specific
// defaults: structured JSON output to stderr, LOG_LEVEL environment based
// level selection, module/version context on every record, and source
// location tracking at debug level.
//
// Typical use, early in main():
//
//	logging.SetDefaultStructuredLogger("arc", version)
//	slog.Info("starting", "nodes", len(targets))
//
// The LOG_LEVEL environment variable (debug, info, warn, error; case
// insensitive) controls verbosity when no explicit level is given. The
// default is info.
package logging
