// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies what happened.
type Type string

const (
	RunStarted   Type = "run.started"
	RunFinished  Type = "run.finished"
	RunNoRecords Type = "run.no_records"

	QueryFailed    Type = "query.failed"
	QueryTruncated Type = "query.truncated"

	SessionFailed Type = "session.failed"

	RecordSkipped          Type = "record.skipped"
	RecordMissingRecipient Type = "record.missing_recipient"
	RecordRenderFailed     Type = "record.render_failed"

	EmailSent   Type = "email.sent"
	EmailFailed Type = "email.failed"

	StatusUpdated      Type = "status.updated"
	StatusUpdateFailed Type = "status.update_failed"
)

// Level orders events by importance.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	// LevelFatal marks the event that aborted the run.
	LevelFatal Level = "fatal"
)

func (l Level) rank() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	case LevelFatal:
		return 4
	default:
		return 1
	}
}

// AtLeast reports whether l is as severe as min.
func (l Level) AtLeast(minLevel Level) bool {
	return l.rank() >= minLevel.rank()
}

// Event is one observation of a run.
type Event struct {
	ID        string         `json:"id"`
	RunID     string         `json:"runId"`
	Type      Type           `json:"type"`
	Level     Level          `json:"level"`
	Timestamp time.Time      `json:"timestamp"`
	RecordID  string         `json:"recordId,omitempty"`
	Recipient string         `json:"recipient,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// New creates an event with a fresh ID and the current time.
func New(runID string, t Type, level Level, message string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		RunID:     runID,
		Type:      t,
		Level:     level,
		Timestamp: time.Now().UTC(),
		Message:   message,
	}
}

// ForRecord sets the record the event is about.
func (e *Event) ForRecord(recordID, recipient string) *Event {
	e.RecordID = recordID
	e.Recipient = recipient
	return e
}

// With adds a detail.
func (e *Event) With(key string, value any) *Event {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}
