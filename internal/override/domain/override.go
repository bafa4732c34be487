package domain

import (
	"time"

	attendancedomain "presensi-praktikum/internal/attendance/domain"
)

// Override is an instructor's manual status correction for one student in one
// session. It is an overlay over the system-recorded attendance, not an
// attendance row itself, until committed.
type Override struct {
	SessionID string
	UserID    string
	Status    attendancedomain.Status
	CreatedAt time.Time
}

// ResolvedEntry is the authoritative per-student status for one session:
// override if present, else the recorded attendance, else absen.
type ResolvedEntry struct {
	UserID      string
	Status      attendancedomain.Status
	DistanceM   *float64
	CheckedInAt *time.Time
	Overridden  bool
}

// Summary is one student's aggregated attendance for a class.
type Summary struct {
	UserID        string
	AttendedCount int
	Percentage    int
	Eligible      bool
}
