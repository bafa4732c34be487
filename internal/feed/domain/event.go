package domain

import "time"

// CheckInEvent is one live-feed entry: a student admitted into a session.
// Serialized as JSON on the Kafka topic and consumed by the feed worker.
type CheckInEvent struct {
	SessionID   string    `json:"session_id"`
	ClassID     string    `json:"class_id"`
	UserID      string    `json:"user_id"`
	Status      string    `json:"status"`
	DistanceM   float64   `json:"distance_m"`
	CheckedInAt time.Time `json:"checked_in_at"`
	Source      string    `json:"source"` // checkin or override_commit
}
