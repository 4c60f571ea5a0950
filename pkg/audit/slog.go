package audit

import (
	"context"
	"log/slog"
)

// SlogLogger writes audit events as structured log lines.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger creates a logger that writes to l, or slog.Default when nil.
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{logger: l}
}

// Log implements Logger.
func (s *SlogLogger) Log(ctx context.Context, event Event) error {
	s.logger.InfoContext(ctx, event.Describe(),
		"category", "GENERAL",
		"action", string(event.Action),
		"table", event.Table,
		"record_id", event.RecordID,
		"version", event.Version,
		"username", event.Username,
	)
	return nil
}

// Verify interface compliance.
var _ Logger = (*SlogLogger)(nil)
