package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	classdomain "presensi-praktikum/internal/class/domain"
	"presensi-praktikum/internal/session/domain"
)

// Sentinel errors for the session service; handler maps them to HTTP codes.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrAlreadyActive   = errors.New("session already active")
	ErrNotActive       = errors.New("session not active")
)

// SessionRepo is the minimal session repository needed by the lifecycle service.
// Activate, Extend, and Deactivate are guarded updates: the SQL predicate
// re-checks the lifecycle state so that concurrent transitions serialize at
// the database and the race loser observes the post state.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	ListByClass(ctx context.Context, classID string) ([]*domain.Session, error)
	Activate(ctx context.Context, id string, lat, lng, radiusM float64, durationMin int, activatedAt, expiresAt time.Time) (bool, error)
	Extend(ctx context.Context, id string, extra time.Duration, now time.Time) (*time.Time, error)
	Deactivate(ctx context.Context, id string, now time.Time) (bool, error)
}

// ClassConfigRepo is the minimal class config repository needed by the lifecycle service.
type ClassConfigRepo interface {
	GetConfig(ctx context.Context, classID string) (*classdomain.Config, error)
}

// SessionService implements the practicum session lifecycle: activate with a
// GPS anchor, extend the admission window, and deactivate early.
type SessionService struct {
	repo       SessionRepo
	configRepo ClassConfigRepo
	nowF       func() time.Time
}

// NewSessionService returns a SessionService with the given dependencies.
func NewSessionService(repo SessionRepo, configRepo ClassConfigRepo) *SessionService {
	return &SessionService{
		repo:       repo,
		configRepo: configRepo,
		nowF:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession creates an idle session for the class. Zero radius or duration
// fall back to the class config defaults.
func (s *SessionService) CreateSession(ctx context.Context, classID, title string, scheduledDate time.Time, durationMin int, radiusM float64) (*domain.Session, error) {
	cfg, err := s.configRepo.GetConfig(ctx, classID)
	if err != nil {
		return nil, err
	}
	merged := classdomain.MergeWithDefaults(cfg)
	if durationMin <= 0 {
		durationMin = merged.DefaultDurationMin
	}
	if radiusM <= 0 {
		radiusM = merged.DefaultRadiusM
	}
	sess := &domain.Session{
		ID:            uuid.New().String(),
		ClassID:       classID,
		Title:         title,
		ScheduledDate: scheduledDate,
		DurationMin:   durationMin,
		RadiusM:       radiusM,
		CreatedAt:     s.nowF(),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Activate opens the session for check-ins: sets the GPS anchor, the active
// flag, and expires_at = now + duration. Legal from idle, expired, or
// deactivated; fails with ErrAlreadyActive while the session is admitting.
// Zero radiusM or durationMin keep the values stored on the session.
func (s *SessionService) Activate(ctx context.Context, sessionID string, lat, lng, radiusM float64, durationMin int) (*domain.Session, error) {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	now := s.nowF()
	if sess.IsAdmitting(now) {
		return nil, ErrAlreadyActive
	}
	if radiusM <= 0 {
		radiusM = sess.RadiusM
	}
	if durationMin <= 0 {
		durationMin = sess.DurationMin
	}
	expiresAt := now.Add(time.Duration(durationMin) * time.Minute)
	applied, err := s.repo.Activate(ctx, sessionID, lat, lng, radiusM, durationMin, now, expiresAt)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost the race against a concurrent Activate.
		return nil, ErrAlreadyActive
	}
	return s.repo.GetByID(ctx, sessionID)
}

// Extend pushes expires_at forward by extraMinutes. Legal only while the
// session is still admitting; extension never resurrects an expired or
// deactivated session. Returns the new deadline.
func (s *SessionService) Extend(ctx context.Context, sessionID string, extraMinutes int) (time.Time, error) {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return time.Time{}, err
	}
	if sess == nil {
		return time.Time{}, ErrSessionNotFound
	}
	now := s.nowF()
	if !sess.IsAdmitting(now) {
		return time.Time{}, ErrNotActive
	}
	newExpiry, err := s.repo.Extend(ctx, sessionID, time.Duration(extraMinutes)*time.Minute, now)
	if err != nil {
		return time.Time{}, err
	}
	if newExpiry == nil {
		// Session lapsed or was closed between the read and the update.
		return time.Time{}, ErrNotActive
	}
	return *newExpiry, nil
}

// Deactivate closes the session before natural expiry. Idempotent: calling it
// on a session that is not admitting is a no-op, not an error. expires_at is
// left untouched as a record of when the window would have lapsed.
func (s *SessionService) Deactivate(ctx context.Context, sessionID string) error {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrSessionNotFound
	}
	_, err = s.repo.Deactivate(ctx, sessionID, s.nowF())
	return err
}

// GetSession returns the session with its lazily derived lifecycle state.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*domain.Session, domain.State, error) {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	if sess == nil {
		return nil, "", ErrSessionNotFound
	}
	return sess, sess.StateAt(s.nowF()), nil
}

// ListSessions returns all sessions for the class.
func (s *SessionService) ListSessions(ctx context.Context, classID string) ([]*domain.Session, error) {
	return s.repo.ListByClass(ctx, classID)
}
