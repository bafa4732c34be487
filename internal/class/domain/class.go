package domain

import "time"

// Class is a practicum course that sessions and enrollments hang off.
type Class struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Config holds per-class attendance settings. Zero fields mean "use default".
type Config struct {
	TotalSessionsPlanned int     `json:"total_sessions_planned"`
	MinAttendancePct     int     `json:"min_attendance_pct"`
	GraceMinutes         int     `json:"grace_minutes"`
	DefaultRadiusM       float64 `json:"default_radius_m"`
	DefaultDurationMin   int     `json:"default_duration_min"`
	UpdatedAt            time.Time
}

// DefaultConfig returns the built-in attendance settings applied when a class
// has no stored config.
func DefaultConfig() Config {
	return Config{
		TotalSessionsPlanned: 14,
		MinAttendancePct:     75,
		GraceMinutes:         10,
		DefaultRadiusM:       100,
		DefaultDurationMin:   30,
	}
}

// MergeWithDefaults returns a copy of c with zero fields replaced by the
// built-in defaults. A nil c yields the full default config.
func MergeWithDefaults(c *Config) *Config {
	return Merge(c, nil)
}

// Merge returns a copy of c with zero fields replaced from fallback. A nil
// fallback means the built-in defaults; fallback's own zero fields are filled
// from the built-in defaults too, so the result is always complete.
func Merge(c, fallback *Config) *Config {
	def := DefaultConfig()
	if fallback != nil {
		d := *fallback
		if d.TotalSessionsPlanned == 0 {
			d.TotalSessionsPlanned = def.TotalSessionsPlanned
		}
		if d.MinAttendancePct == 0 {
			d.MinAttendancePct = def.MinAttendancePct
		}
		if d.GraceMinutes == 0 {
			d.GraceMinutes = def.GraceMinutes
		}
		if d.DefaultRadiusM == 0 {
			d.DefaultRadiusM = def.DefaultRadiusM
		}
		if d.DefaultDurationMin == 0 {
			d.DefaultDurationMin = def.DefaultDurationMin
		}
		def = d
	}
	if c == nil {
		return &def
	}
	out := *c
	if out.TotalSessionsPlanned == 0 {
		out.TotalSessionsPlanned = def.TotalSessionsPlanned
	}
	if out.MinAttendancePct == 0 {
		out.MinAttendancePct = def.MinAttendancePct
	}
	if out.GraceMinutes == 0 {
		out.GraceMinutes = def.GraceMinutes
	}
	if out.DefaultRadiusM == 0 {
		out.DefaultRadiusM = def.DefaultRadiusM
	}
	if out.DefaultDurationMin == 0 {
		out.DefaultDurationMin = def.DefaultDurationMin
	}
	return &out
}

// GraceWindow returns the grace window as a duration.
func (c *Config) GraceWindow() time.Duration {
	return time.Duration(c.GraceMinutes) * time.Minute
}
