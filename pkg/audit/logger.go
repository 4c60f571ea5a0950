// Package audit records version store activity in the system log.
package audit

import (
	"context"
	"errors"
	"time"
)

// Logger defines the interface for audit logging.
type Logger interface {
	// Log records an audit event.
	Log(ctx context.Context, event Event) error
}

// Event represents an auditable version store event.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	Table     string    `json:"table"`
	RecordID  int64     `json:"record_id"`
	Version   int       `json:"version"`
	Username  string    `json:"username,omitempty"`
	UserID    int64     `json:"user_id,omitempty"`
	Message   string    `json:"message"`
}

// QueryFilter defines criteria for querying stored audit events.
type QueryFilter struct {
	StartTime *time.Time
	EndTime   *time.Time
	Action    Action
	Table     string
	RecordID  int64
	Username  string
	Limit     int
	Offset    int
}

// Config configures audit logging.
type Config struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
}

// Multi fans an event out to several loggers. Every logger is called; the
// errors of failing loggers are joined.
type Multi []Logger

// Log implements Logger.
func (m Multi) Log(ctx context.Context, event Event) error {
	var errs []error
	for _, l := range m {
		if err := l.Log(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Verify interface compliance.
var _ Logger = Multi(nil)
