package repository

import (
	"context"
	"time"
)

// EventRepository is the journal behind the upload event topics.
type EventRepository interface {
	// Store appends one event to the journal.
	Store(ctx context.Context, event Event) error

	// FindBySessionID returns a session's events, oldest first.
	FindBySessionID(ctx context.Context, sessionID string) ([]Event, error)

	// FindByEventType returns events of one type, newest first, up to
	// limit when limit > 0.
	FindByEventType(ctx context.Context, eventType string, limit int) ([]Event, error)

	// DeleteOldEvents removes events recorded before the given time.
	DeleteOldEvents(ctx context.Context, beforeTime time.Time) error

	// GetEventStats returns event counts grouped by type.
	GetEventStats(ctx context.Context) (map[string]int64, error)
}

// Event is one journaled upload event.
type Event struct {
	ID           string
	EventType    string
	SessionID    string
	AttachmentID string
	Data         interface{}
	CreatedAt    time.Time
}
