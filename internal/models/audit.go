package models

import "time"

// EventKind classifies an audit event.
type EventKind string

const (
	EventLogin  EventKind = "login"
	EventLogout EventKind = "logout"
	EventAdd    EventKind = "add"
	EventDelete EventKind = "delete"
	EventUpdate EventKind = "update"
	EventError  EventKind = "error"
)

// AuditEvent is a write-once record of one operator action or failure.
// Dispatch is fire-and-forget; the local file append is an independent
// best-effort record.
type AuditEvent struct {
	ID        string    `json:"event_id"`
	Kind      EventKind `json:"kind"`
	Table     string    `json:"table,omitempty"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail,omitempty"`
}
