// Package logger provides a slog factory and attribute helpers shared by
// the session engine and its store adapters.
//
// The factory produces JSON or text handlers with a configurable level;
// the attribute helpers keep log call sites terse and nil-safe:
//
//	log := logger.New(logger.WithLevel(slog.LevelDebug), logger.WithFormat(logger.FormatText))
//	log.Info("session saved", logger.SessionKey(key), logger.Elapsed(start))
//
// Logging is a side channel: helpers never panic and a nil error or empty
// key produces an empty attribute that slog drops silently.
package logger
