package domain

import "time"

// Status is the attendance outcome for one student in one session.
type Status string

const (
	StatusHadir   Status = "hadir"   // on time
	StatusTelat   Status = "telat"   // late, within the active window but past grace
	StatusAbsen   Status = "absen"   // absent, no record and no override
	StatusDitolak Status = "ditolak" // rejected by the instructor
)

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusHadir, StatusTelat, StatusAbsen, StatusDitolak:
		return true
	}
	return false
}

// Attended reports whether s counts toward the attendance percentage.
func (s Status) Attended() bool {
	return s == StatusHadir || s == StatusTelat
}

// Attendance is one student's admission record for one session.
// GPS fields are nil when the row was created by an instructor override
// rather than a check-in.
type Attendance struct {
	ID          string
	SessionID   string
	UserID      string
	Status      Status
	DistanceM   *float64
	CheckedInAt *time.Time
	Lat         *float64
	Lng         *float64
	CreatedAt   time.Time
}
