// Package logger builds slog loggers with consistent formatting and
// provides typed attribute helpers shared across authkit packages.
//
// Services accept an optional *slog.Logger and default to NewDiscard, so
// logging remains a concern of the caller that wires the service, not of
// the service itself.
//
//	log := logger.New(
//		logger.WithFormat(logger.FormatJSON),
//		logger.WithLevel(slog.LevelDebug),
//	)
//	log.Info("signed in", logger.UserID(user.ID), logger.Provider("apple"))
package logger
