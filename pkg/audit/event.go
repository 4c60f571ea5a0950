package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action categorizes audit events.
type Action string

const (
	// ActionVersionCreated is logged after a snapshot has been stored.
	ActionVersionCreated Action = "version_created"

	// ActionVersionRestored is logged after a record has been rolled back.
	ActionVersionRestored Action = "version_restored"
)

// NewEvent creates a new audit event.
func NewEvent(action Action) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Action:    action,
	}
}

// WithRecord adds the affected record and version to the event.
func (e *Event) WithRecord(table string, recordID int64, version int) *Event {
	e.Table = table
	e.RecordID = recordID
	e.Version = version
	return e
}

// WithUser adds user information to the event.
func (e *Event) WithUser(username string, userID int64) *Event {
	e.Username = username
	e.UserID = userID
	return e
}

// WithTimestamp overrides the event time.
func (e *Event) WithTimestamp(ts time.Time) *Event {
	e.Timestamp = ts
	return e
}

// WithMessage sets the human readable message. When empty, a message is
// derived from the action.
func (e *Event) WithMessage(msg string) *Event {
	e.Message = msg
	return e
}

// Describe returns the system log line for the event.
func (e *Event) Describe() string {
	if e.Message != "" {
		return e.Message
	}
	verb := "changed"
	switch e.Action {
	case ActionVersionCreated:
		verb = "created"
	case ActionVersionRestored:
		verb = "restored"
	}
	return fmt.Sprintf(`Version %d of record "%s.id=%d" has been %s`, e.Version, e.Table, e.RecordID, verb)
}
