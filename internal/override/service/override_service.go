package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	attendancedomain "presensi-praktikum/internal/attendance/domain"
	classdomain "presensi-praktikum/internal/class/domain"
	enrollmentdomain "presensi-praktikum/internal/enrollment/domain"
	"presensi-praktikum/internal/feed"
	feeddomain "presensi-praktikum/internal/feed/domain"
	"presensi-praktikum/internal/override/domain"
	sessiondomain "presensi-praktikum/internal/session/domain"
)

// Sentinel errors for the override service; handler maps them to HTTP codes.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotEnrolled     = errors.New("user is not enrolled in the class")
	ErrInvalidStatus   = errors.New("invalid attendance status")
)

// OverrideRepo is the minimal override repository needed by the reconciler.
type OverrideRepo interface {
	Get(ctx context.Context, sessionID, userID string) (*domain.Override, error)
	Upsert(ctx context.Context, o *domain.Override) error
	Delete(ctx context.Context, sessionID, userID string) error
	ListBySession(ctx context.Context, sessionID string) ([]*domain.Override, error)
	ListByClass(ctx context.Context, classID string) ([]*domain.Override, error)
}

// AttendanceRepo is the minimal attendance repository needed by the reconciler.
type AttendanceRepo interface {
	GetBySessionAndUser(ctx context.Context, sessionID, userID string) (*attendancedomain.Attendance, error)
	ListBySession(ctx context.Context, sessionID string) ([]*attendancedomain.Attendance, error)
	ListByClass(ctx context.Context, classID string) ([]*attendancedomain.Attendance, error)
	Upsert(ctx context.Context, a *attendancedomain.Attendance) error
}

// SessionRepo is the minimal session repository needed by the reconciler.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	ListByClass(ctx context.Context, classID string) ([]*sessiondomain.Session, error)
}

// EnrollmentRepo is the minimal enrollment repository needed by the reconciler.
type EnrollmentRepo interface {
	GetEnrollmentByUserAndClass(ctx context.Context, userID, classID string) (*enrollmentdomain.Enrollment, error)
	ListEnrollmentsByClass(ctx context.Context, classID string) ([]*enrollmentdomain.Enrollment, error)
}

// ClassConfigRepo is the minimal class config repository needed by the reconciler.
type ClassConfigRepo interface {
	GetConfig(ctx context.Context, classID string) (*classdomain.Config, error)
}

// OverrideService merges instructor manual corrections with system-recorded
// attendance into the authoritative per-student status, and aggregates class
// eligibility. Instructor authority is final: an override may replace any
// recorded status, including a valid GPS check-in.
type OverrideService struct {
	overrideRepo   OverrideRepo
	attendanceRepo AttendanceRepo
	sessionRepo    SessionRepo
	enrollmentRepo EnrollmentRepo
	configRepo     ClassConfigRepo
	emitter        feed.EventEmitter
	nowF           func() time.Time
}

// NewOverrideService returns an OverrideService with the given dependencies.
// emitter may be nil; then commits emit no feed events.
func NewOverrideService(
	overrideRepo OverrideRepo,
	attendanceRepo AttendanceRepo,
	sessionRepo SessionRepo,
	enrollmentRepo EnrollmentRepo,
	configRepo ClassConfigRepo,
	emitter feed.EventEmitter,
) *OverrideService {
	return &OverrideService{
		overrideRepo:   overrideRepo,
		attendanceRepo: attendanceRepo,
		sessionRepo:    sessionRepo,
		enrollmentRepo: enrollmentRepo,
		configRepo:     configRepo,
		emitter:        emitter,
		nowF:           func() time.Time { return time.Now().UTC() },
	}
}

// SetOverride records an instructor's manual status choice for the student.
// Rejects users not enrolled in the session's class; otherwise unconditional.
func (s *OverrideService) SetOverride(ctx context.Context, sessionID, userID string, status attendancedomain.Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}
	enr, err := s.enrollmentRepo.GetEnrollmentByUserAndClass(ctx, userID, sess.ClassID)
	if err != nil {
		return err
	}
	if enr == nil {
		return ErrNotEnrolled
	}
	return s.overrideRepo.Upsert(ctx, &domain.Override{
		SessionID: sessionID,
		UserID:    userID,
		Status:    status,
		CreatedAt: s.nowF(),
	})
}

// ClearOverride removes the manual correction, reverting to the recorded
// truth. Clearing a missing override is a no-op.
func (s *OverrideService) ClearOverride(ctx context.Context, sessionID, userID string) error {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}
	return s.overrideRepo.Delete(ctx, sessionID, userID)
}

// Resolve returns the authoritative status for the pair: override if present,
// else the recorded attendance status, else absen.
func (s *OverrideService) Resolve(ctx context.Context, sessionID, userID string) (attendancedomain.Status, error) {
	o, err := s.overrideRepo.Get(ctx, sessionID, userID)
	if err != nil {
		return "", err
	}
	if o != nil {
		return o.Status, nil
	}
	att, err := s.attendanceRepo.GetBySessionAndUser(ctx, sessionID, userID)
	if err != nil {
		return "", err
	}
	if att != nil {
		return att.Status, nil
	}
	return attendancedomain.StatusAbsen, nil
}

// ListSessionAttendance returns the resolved (override-aware) entry for every
// student enrolled in the session's class, sorted by user ID. Students with
// neither a row nor an override appear as absen.
func (s *OverrideService) ListSessionAttendance(ctx context.Context, sessionID string) ([]*domain.ResolvedEntry, error) {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	enrollments, err := s.enrollmentRepo.ListEnrollmentsByClass(ctx, sess.ClassID)
	if err != nil {
		return nil, err
	}
	attendance, err := s.attendanceRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	overrides, err := s.overrideRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	attByUser := make(map[string]*attendancedomain.Attendance, len(attendance))
	for _, a := range attendance {
		attByUser[a.UserID] = a
	}
	ovrByUser := make(map[string]*domain.Override, len(overrides))
	for _, o := range overrides {
		ovrByUser[o.UserID] = o
	}

	var out []*domain.ResolvedEntry
	for _, e := range enrollments {
		if e.Role != enrollmentdomain.RoleStudent {
			continue
		}
		entry := &domain.ResolvedEntry{UserID: e.UserID, Status: attendancedomain.StatusAbsen}
		if a, ok := attByUser[e.UserID]; ok {
			entry.Status = a.Status
			entry.DistanceM = a.DistanceM
			entry.CheckedInAt = a.CheckedInAt
		}
		if o, ok := ovrByUser[e.UserID]; ok {
			entry.Status = o.Status
			entry.Overridden = true
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Commit reconciles the session's overlay into attendance rows: each override
// is upserted (a synthetic row without GPS fields when no check-in exists,
// a status update preserving GPS fields when one does) and then cleared.
// Returns the number of rows written.
func (s *OverrideService) Commit(ctx context.Context, sessionID string) (int, error) {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if sess == nil {
		return 0, ErrSessionNotFound
	}
	overrides, err := s.overrideRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	now := s.nowF()
	committed := 0
	for _, o := range overrides {
		row := &attendancedomain.Attendance{
			ID:        uuid.New().String(),
			SessionID: sessionID,
			UserID:    o.UserID,
			Status:    o.Status,
			CreatedAt: now,
		}
		if err := s.attendanceRepo.Upsert(ctx, row); err != nil {
			return committed, err
		}
		if err := s.overrideRepo.Delete(ctx, sessionID, o.UserID); err != nil {
			return committed, err
		}
		committed++
		feed.EmitAsync(s.emitter, ctx, &feeddomain.CheckInEvent{
			SessionID:   sessionID,
			ClassID:     sess.ClassID,
			UserID:      o.UserID,
			Status:      string(o.Status),
			CheckedInAt: now,
			Source:      "override_commit",
		})
	}
	return committed, nil
}

// Summarize aggregates per-student eligibility for the class, recomputed from
// current state on every call: resolved statuses, the class's planned session
// count, and its minimum percentage. attended counts sessions whose resolved
// status is hadir or telat.
func (s *OverrideService) Summarize(ctx context.Context, classID string) ([]*domain.Summary, error) {
	cfg, err := s.configRepo.GetConfig(ctx, classID)
	if err != nil {
		return nil, err
	}
	merged := classdomain.MergeWithDefaults(cfg)

	enrollments, err := s.enrollmentRepo.ListEnrollmentsByClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	attendance, err := s.attendanceRepo.ListByClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	overrides, err := s.overrideRepo.ListByClass(ctx, classID)
	if err != nil {
		return nil, err
	}

	type pair struct{ sessionID, userID string }
	resolved := make(map[pair]attendancedomain.Status, len(attendance))
	for _, a := range attendance {
		resolved[pair{a.SessionID, a.UserID}] = a.Status
	}
	for _, o := range overrides {
		resolved[pair{o.SessionID, o.UserID}] = o.Status
	}

	attended := make(map[string]int)
	for k, status := range resolved {
		if status.Attended() {
			attended[k.userID]++
		}
	}

	var out []*domain.Summary
	for _, e := range enrollments {
		if e.Role != enrollmentdomain.RoleStudent {
			continue
		}
		count := attended[e.UserID]
		pct := 0
		if merged.TotalSessionsPlanned > 0 {
			pct = int(math.Round(float64(count) / float64(merged.TotalSessionsPlanned) * 100))
		}
		out = append(out, &domain.Summary{
			UserID:        e.UserID,
			AttendedCount: count,
			Percentage:    pct,
			Eligible:      pct >= merged.MinAttendancePct,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
