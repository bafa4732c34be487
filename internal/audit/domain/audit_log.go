package domain

import "time"

// AuditLog represents an instructor action audit event.
type AuditLog struct {
	ID        string
	ClassID   string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
