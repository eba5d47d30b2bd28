// Package logging provides leveled, structured logging for medchat.
//
// It is a thin layer over Go's standard slog package that adds a
// subsystem attribute to every entry so logs can be filtered by the
// component that produced them (Session, Refresh, Stream, Provision,
// API, Config).
//
// # Usage
//
//	logging.Init(logging.LevelInfo, os.Stderr)
//	logging.Info("Session", "Credentials loaded from %s", path)
//	logging.Error("Refresh", err, "All refresh candidates failed")
//
// Calls made before Init fall back to a stderr handler so early
// startup errors are never silently dropped.
package logging
