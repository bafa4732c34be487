package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"presensi-praktikum/internal/attendance/domain"
	attendancerepo "presensi-praktikum/internal/attendance/repository"
	classdomain "presensi-praktikum/internal/class/domain"
	"presensi-praktikum/internal/feed"
	feeddomain "presensi-praktikum/internal/feed/domain"
	"presensi-praktikum/internal/geo"
	"presensi-praktikum/internal/policy/engine"
	"presensi-praktikum/internal/ratelimit"
	sessiondomain "presensi-praktikum/internal/session/domain"
)

// Sentinel errors for the admission path; handler maps them to HTTP codes.
// Validation order is fixed: inactive, expired, rate limited, duplicate,
// out of range. The first failing check wins so the student sees the most
// actionable error.
var (
	ErrSessionInactive = errors.New("session is not accepting check-ins")
	ErrSessionExpired  = errors.New("session admission window has expired")
	ErrRateLimited     = errors.New("too many check-in attempts, try again shortly")
)

// OutOfRangeError reports a rejected check-in outside the session geofence.
// Carries the computed distance so the client can show how far over the
// student is. Nothing is persisted; the student may retry from closer in.
type OutOfRangeError struct {
	DistanceM float64
	RadiusM   float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("location is %.0f m from the session anchor, allowed radius %.0f m", e.DistanceM, e.RadiusM)
}

// AlreadyCheckedInError reports a duplicate check-in, carrying the original
// check-in time for display.
type AlreadyCheckedInError struct {
	CheckedInAt time.Time
}

func (e *AlreadyCheckedInError) Error() string {
	return fmt.Sprintf("already checked in at %s", e.CheckedInAt.Format(time.RFC3339))
}

// SessionRepo is the minimal session repository needed by the check-in service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
}

// AttendanceRepo is the minimal attendance repository needed by the check-in service.
// Create must return attendancerepo.ErrDuplicate on a (session_id, user_id)
// unique violation; that constraint, not application locking, is what keeps
// concurrent duplicate check-ins out.
type AttendanceRepo interface {
	GetBySessionAndUser(ctx context.Context, sessionID, userID string) (*domain.Attendance, error)
	Create(ctx context.Context, a *domain.Attendance) error
	ListBySession(ctx context.Context, sessionID string) ([]*domain.Attendance, error)
}

// ClassConfigRepo is the minimal class config repository needed by the check-in service.
type ClassConfigRepo interface {
	GetConfig(ctx context.Context, classID string) (*classdomain.Config, error)
}

// CheckInService admits students into practicum sessions: validates the
// session window, rate limit, idempotency, and geofence, classifies the
// result, and persists exactly one attendance row per admitted student.
type CheckInService struct {
	sessionRepo    SessionRepo
	attendanceRepo AttendanceRepo
	configRepo     ClassConfigRepo
	limiter        ratelimit.Limiter
	classifier     engine.Evaluator
	emitter        feed.EventEmitter
	nowF           func() time.Time
}

// NewCheckInService returns a CheckInService with the given dependencies.
// emitter may be nil; then no feed events are emitted.
func NewCheckInService(
	sessionRepo SessionRepo,
	attendanceRepo AttendanceRepo,
	configRepo ClassConfigRepo,
	limiter ratelimit.Limiter,
	classifier engine.Evaluator,
	emitter feed.EventEmitter,
) *CheckInService {
	return &CheckInService{
		sessionRepo:    sessionRepo,
		attendanceRepo: attendanceRepo,
		configRepo:     configRepo,
		limiter:        limiter,
		classifier:     classifier,
		emitter:        emitter,
		nowF:           func() time.Time { return time.Now().UTC() },
	}
}

// CheckIn validates and records one admission attempt. Wall clock is read once
// and the whole attempt is judged against that instant. Every error path
// writes nothing; success writes exactly one attendance row.
func (s *CheckInService) CheckIn(ctx context.Context, sessionID, userID string, lat, lng float64) (*domain.Attendance, error) {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.nowF()

	// 1. Session must exist and be admitting per the derived-state rule.
	// ActivatedAt is checked here too: activation writes it together with the
	// anchor, but the admission guard must not rely on that coupling.
	if sess == nil || !sess.IsActive || sess.AnchorLat == nil || sess.AnchorLng == nil ||
		sess.ActivatedAt == nil || sess.ExpiresAt == nil {
		return nil, ErrSessionInactive
	}
	// 2. Expiry is decided by time comparison, never the stored flag.
	if !now.Before(*sess.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	// 3. Rate limit before any storage read so hammering stays cheap.
	if !s.limiter.Allow(userID, now) {
		return nil, ErrRateLimited
	}
	// 4. Idempotency pre-check. The DB unique constraint is the real guard;
	// this read just gives the duplicate its original checked_in_at.
	existing, err := s.attendanceRepo.GetBySessionAndUser(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &AlreadyCheckedInError{CheckedInAt: checkedInTime(existing)}
	}
	// 5. Geofence, boundary inclusive.
	distance := geo.Distance(
		geo.Coordinate{Lat: lat, Lng: lng},
		geo.Coordinate{Lat: *sess.AnchorLat, Lng: *sess.AnchorLng},
	)
	if distance > sess.RadiusM {
		return nil, &OutOfRangeError{DistanceM: distance, RadiusM: sess.RadiusM}
	}
	// 6. Classify on time vs late and persist.
	status, err := s.classify(ctx, sess, now, distance)
	if err != nil {
		return nil, err
	}
	att := &domain.Attendance{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		UserID:      userID,
		Status:      status,
		DistanceM:   &distance,
		CheckedInAt: &now,
		Lat:         &lat,
		Lng:         &lng,
		CreatedAt:   now,
	}
	if err := s.attendanceRepo.Create(ctx, att); err != nil {
		if errors.Is(err, attendancerepo.ErrDuplicate) {
			// Lost the insert race; report the winner's check-in time.
			winner, gerr := s.attendanceRepo.GetBySessionAndUser(ctx, sessionID, userID)
			if gerr == nil && winner != nil {
				return nil, &AlreadyCheckedInError{CheckedInAt: checkedInTime(winner)}
			}
			return nil, &AlreadyCheckedInError{CheckedInAt: now}
		}
		return nil, err
	}

	feed.EmitAsync(s.emitter, ctx, &feeddomain.CheckInEvent{
		SessionID:   sessionID,
		ClassID:     sess.ClassID,
		UserID:      userID,
		Status:      string(status),
		DistanceM:   distance,
		CheckedInAt: now,
		Source:      "checkin",
	})
	return att, nil
}

// ListSessionAttendance returns the raw attendance rows for the session.
func (s *CheckInService) ListSessionAttendance(ctx context.Context, sessionID string) ([]*domain.Attendance, error) {
	return s.attendanceRepo.ListBySession(ctx, sessionID)
}

func (s *CheckInService) classify(ctx context.Context, sess *sessiondomain.Session, now time.Time, distance float64) (domain.Status, error) {
	cfg, err := s.configRepo.GetConfig(ctx, sess.ClassID)
	if err != nil {
		return "", err
	}
	merged := classdomain.MergeWithDefaults(cfg)
	elapsed := now.Sub(*sess.ActivatedAt)
	return s.classifier.Classify(ctx, engine.ClassificationInput{
		ClassID:     sess.ClassID,
		Elapsed:     elapsed,
		GraceWindow: merged.GraceWindow(),
		DistanceM:   distance,
		RadiusM:     sess.RadiusM,
	})
}

// checkedInTime returns the row's check-in time, falling back to created_at
// for synthetic rows written by overrides.
func checkedInTime(a *domain.Attendance) time.Time {
	if a.CheckedInAt != nil {
		return *a.CheckedInAt
	}
	return a.CreatedAt
}
