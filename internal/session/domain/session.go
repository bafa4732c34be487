package domain

import "time"

// Session represents one practicum meeting instance.
type Session struct {
	ID            string
	ClassID       string
	Title         string
	ScheduledDate time.Time
	DurationMin   int
	IsActive      bool
	ActivatedAt   *time.Time // nil when never activated
	ExpiresAt     *time.Time // nil until activation
	AnchorLat     *float64   // nil until activation
	AnchorLng     *float64
	RadiusM       float64
	DeactivatedAt *time.Time // nil unless explicitly closed by the instructor
	CreatedAt     time.Time
}

// State is the lifecycle state of a session at a point in time.
type State string

const (
	StateIdle        State = "idle"
	StateActive      State = "active"
	StateExpired     State = "expired"
	StateDeactivated State = "deactivated"
)

// IsAdmitting reports whether the session accepts check-ins at now.
// The stored active flag alone is never trusted: a session with no anchor
// or a past deadline does not admit, regardless of the flag.
func (s *Session) IsAdmitting(now time.Time) bool {
	return s.IsActive &&
		s.AnchorLat != nil && s.AnchorLng != nil &&
		s.ExpiresAt != nil && now.Before(*s.ExpiresAt)
}

// StateAt derives the lifecycle state at now. Expiry is detected lazily here,
// there is no background timer flipping the stored flag.
func (s *Session) StateAt(now time.Time) State {
	if s.ActivatedAt == nil {
		return StateIdle
	}
	if s.DeactivatedAt != nil {
		return StateDeactivated
	}
	if s.IsAdmitting(now) {
		return StateActive
	}
	return StateExpired
}
