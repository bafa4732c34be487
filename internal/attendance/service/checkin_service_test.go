package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"presensi-praktikum/internal/attendance/domain"
	attendancerepo "presensi-praktikum/internal/attendance/repository"
	classdomain "presensi-praktikum/internal/class/domain"
	feeddomain "presensi-praktikum/internal/feed/domain"
	"presensi-praktikum/internal/policy/engine"
	"presensi-praktikum/internal/ratelimit"
	sessiondomain "presensi-praktikum/internal/session/domain"
)

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*sessiondomain.Session
}

func (f *fakeSessionRepo) GetByID(_ context.Context, id string) (*sessiondomain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

type pairKey struct{ sessionID, userID string }

type fakeAttendanceRepo struct {
	mu   sync.Mutex
	rows map[pairKey]*domain.Attendance
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{rows: make(map[pairKey]*domain.Attendance)}
}

func (f *fakeAttendanceRepo) GetBySessionAndUser(_ context.Context, sessionID, userID string) (*domain.Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[pairKey{sessionID, userID}]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAttendanceRepo) Create(_ context.Context, a *domain.Attendance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pairKey{a.SessionID, a.UserID}
	if _, exists := f.rows[key]; exists {
		return attendancerepo.ErrDuplicate
	}
	cp := *a
	f.rows[key] = &cp
	return nil
}

func (f *fakeAttendanceRepo) ListBySession(_ context.Context, sessionID string) ([]*domain.Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Attendance
	for k, a := range f.rows {
		if k.sessionID == sessionID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAttendanceRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeConfigRepo struct {
	cfg *classdomain.Config
}

func (f *fakeConfigRepo) GetConfig(_ context.Context, _ string) (*classdomain.Config, error) {
	return f.cfg, nil
}

// graceClassifier applies the built-in on-time rule without OPA.
type graceClassifier struct{}

func (graceClassifier) Classify(_ context.Context, in engine.ClassificationInput) (domain.Status, error) {
	if in.Elapsed <= in.GraceWindow {
		return domain.StatusHadir, nil
	}
	return domain.StatusTelat, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(string, time.Time) bool { return false }

type captureEmitter struct {
	mu     sync.Mutex
	events []*feeddomain.CheckInEvent
}

func (c *captureEmitter) Emit(_ context.Context, e *feeddomain.CheckInEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *captureEmitter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

const (
	anchorLat = -6.2
	anchorLng = 106.816666
)

func activeSession(now time.Time) *sessiondomain.Session {
	lat, lng := anchorLat, anchorLng
	activatedAt := now.Add(-5 * time.Minute)
	expiresAt := now.Add(25 * time.Minute)
	return &sessiondomain.Session{
		ID: "sess-1", ClassID: "class-1", Title: "Praktikum 1",
		DurationMin: 30, RadiusM: 100,
		IsActive: true, ActivatedAt: &activatedAt, ExpiresAt: &expiresAt,
		AnchorLat: &lat, AnchorLng: &lng,
	}
}

type testEnv struct {
	svc     *CheckInService
	repo    *fakeAttendanceRepo
	emitter *captureEmitter
}

func newTestEnv(now time.Time, sess *sessiondomain.Session) *testEnv {
	sessions := map[string]*sessiondomain.Session{}
	if sess != nil {
		sessions[sess.ID] = sess
	}
	repo := newFakeAttendanceRepo()
	emitter := &captureEmitter{}
	svc := NewCheckInService(
		&fakeSessionRepo{sessions: sessions},
		repo,
		&fakeConfigRepo{},
		ratelimit.NewSlidingWindow(3, time.Minute),
		graceClassifier{},
		emitter,
	)
	svc.nowF = func() time.Time { return now }
	return &testEnv{svc: svc, repo: repo, emitter: emitter}
}

func TestCheckIn_OnTime(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 5, 0, 0, time.UTC)
	env := newTestEnv(now, activeSession(now))

	att, err := env.svc.CheckIn(context.Background(), "sess-1", "student-1", anchorLat, anchorLng)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if att.Status != domain.StatusHadir {
		t.Errorf("status = %q, want hadir within grace", att.Status)
	}
	if att.CheckedInAt == nil || !att.CheckedInAt.Equal(now) {
		t.Errorf("CheckedInAt = %v, want %v", att.CheckedInAt, now)
	}
	if att.DistanceM == nil || *att.DistanceM != 0 {
		t.Errorf("DistanceM = %v, want 0 at the anchor", att.DistanceM)
	}
	if env.repo.count() != 1 {
		t.Errorf("rows = %d, want 1", env.repo.count())
	}
}

func TestCheckIn_LatePastGrace(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 5, 0, 0, time.UTC)
	sess := activeSession(now)
	// Activated 15 minutes ago, default grace is 10.
	activatedAt := now.Add(-15 * time.Minute)
	sess.ActivatedAt = &activatedAt
	env := newTestEnv(now, sess)

	att, err := env.svc.CheckIn(context.Background(), "sess-1", "student-1", anchorLat, anchorLng)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if att.Status != domain.StatusTelat {
		t.Errorf("status = %q, want telat past grace", att.Status)
	}
}

func TestCheckIn_SessionMissing(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 5, 0, 0, time.UTC)
	env := newTestEnv(now, nil)

	_, err := env.svc.CheckIn(context.Background(), "sess-1", "student-1", anchorLat, anchorLng)
	if !errors.Is(err, ErrSessionInactive) {
		t.Fatalf("err = %v, want ErrSessionInactive", err)
	}
}

func TestCheckIn_SessionIdle(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 5, 0, 0, time.UTC)
	env := newTestEnv(now, &sessiondomain.Session{ID: "sess-1", ClassID: "class-1", RadiusM: 100})

	_, err := env.svc.CheckIn(context.Background(), "sess-1", "student-1", anchorLat, anchorLng)
	if !errors.Is(err, ErrSessionInactive) {
		t.Fatalf("err = %v, want ErrSessionInactive", err)
	}
	if env.repo.count() != 0 {
		t.Error("error path must not write rows")
	}
}

func TestCheckIn_ActivationTimestampMissing(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 5, 0, 0, time.UTC)
	sess := activeSession(now)
	// Anchor and deadline set but no activation timestamp, as a hand-edited
	// row could look. Must reject instead of reaching classification.
	sess.ActivatedAt = nil
	env := newTestEnv(now, sess)

	_, err := env.svc.CheckIn(context.Background(), "sess-1", "student-1", anchorLat, anchorLng)
	if !errors.Is(err, ErrSessionInactive) {
		t.Fatalf("err = %v, want ErrSessionInactive", err)
	}
	if env.repo.count() != 0 {
		t.Error("error path must not write rows")
	}
}

func TestCheckIn_SessionExpired(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 5, 0, 0, time.UTC)
	sess := activeSession(now)
	// Stored flag still says active, deadline decides.
	expiredAt := now.Add(-time.Second)
	sess.ExpiresAt = &expiredAt
	env := newTestEnv(now, sess)

	_, err := env.svc.CheckIn(context.Background(), "sess-1", "student-1", anchorLat, anchorLng)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
}

func TestCheckIn_DeadlineExactlyNowIsExpired(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 5, 0, 0, time.UTC)
	sess := activeSession(now)
	sess.ExpiresAt = &now
	env := newTestEnv(now, sess)

	_, err := env.svc.CheckIn(context.Background(), "sess-1", "student-1", anchorLat, anchorLng)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired at the exact deadline", err)
	}
}

func TestCheckIn_RateLimited(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 5, 0, 0, time.UTC)
	env := newTestEnv(now, activeSession(now))
	env.svc.limiter = denyLimiter{}

	_, err := env.svc.CheckIn(context.Background(), "sess-1", "student-1", anchorLat, anchorLng)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if env.repo.count() != 0 {
		t.Error("rate limited attempt must not write rows")
	}
}

func TestCheckIn_ExpiredWinsOverRateLimit(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 5, 0, 0, time.UTC)
	sess := activeSession(now)
	expiredAt := now.Add(-time.Minute)
	sess.ExpiresAt = &expiredAt
	env := newTestEnv(now, sess)
	env.svc.limiter = denyLimiter{}

	_, err := env.svc.CheckIn(context.Background(), "sess-1", "student-1", anchorLat, anchorLng)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired before the rate limit check", err)
	}
}

func TestCheckIn_AlreadyCheckedIn(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 5, 0, 0, time.UTC)
	env := newTestEnv(now, activeSession(now))

	first, err := env.svc.CheckIn(context.Background(), "sess-1", "student-1", anchorLat, anchorLng)
	if err != nil {
		t.Fatalf("first CheckIn: %v", err)
	}

	_, err = env.svc.CheckIn(context.Background(), "sess-1", "student-1", anchorLat, anchorLng)
	var dup *AlreadyCheckedInError
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v, want AlreadyCheckedInError", err)
	}
	if !dup.CheckedInAt.Equal(*first.CheckedInAt) {
		t.Errorf("CheckedInAt = %v, want original %v", dup.CheckedInAt, first.CheckedInAt)
	}
	if env.repo.count() != 1 {
		t.Errorf("rows = %d, want 1 after duplicate attempt", env.repo.count())
	}
}

func TestCheckIn_OutOfRange(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 5, 0, 0, time.UTC)
	env := newTestEnv(now, activeSession(now))

	// Roughly 1.1 km north of the anchor, radius is 100 m.
	_, err := env.svc.CheckIn(context.Background(), "sess-1", "student-1", anchorLat+0.01, anchorLng)
	var oor *OutOfRangeError
	if !errors.As(err, &oor) {
		t.Fatalf("err = %v, want OutOfRangeError", err)
	}
	if oor.DistanceM <= 100 {
		t.Errorf("DistanceM = %v, want > 100", oor.DistanceM)
	}
	if env.repo.count() != 0 {
		t.Error("out-of-range attempt must not write rows")
	}
}

func TestCheckIn_RadiusBoundaryInclusive(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 5, 0, 0, time.UTC)
	sess := activeSession(now)
	sess.RadiusM = 0
	env := newTestEnv(now, sess)

	// distance == radius admits.
	att, err := env.svc.CheckIn(context.Background(), "sess-1", "student-1", anchorLat, anchorLng)
	if err != nil {
		t.Fatalf("CheckIn at exact boundary: %v", err)
	}
	if att == nil {
		t.Fatal("expected attendance row")
	}
}

func TestCheckIn_EmitsFeedEvent(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 5, 0, 0, time.UTC)
	env := newTestEnv(now, activeSession(now))

	if _, err := env.svc.CheckIn(context.Background(), "sess-1", "student-1", anchorLat, anchorLng); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	// EmitAsync runs in a goroutine.
	deadline := time.Now().Add(time.Second)
	for env.emitter.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if env.emitter.count() != 1 {
		t.Fatalf("feed events = %d, want 1", env.emitter.count())
	}
	env.emitter.mu.Lock()
	ev := env.emitter.events[0]
	env.emitter.mu.Unlock()
	if ev.SessionID != "sess-1" || ev.UserID != "student-1" || ev.Source != "checkin" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestCheckIn_ConcurrentSamePairSingleRow(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 5, 0, 0, time.UTC)
	env := newTestEnv(now, activeSession(now))
	// Generous limit so the rate limiter does not interfere.
	env.svc.limiter = ratelimit.NewSlidingWindow(100, time.Minute)

	const attempts = 20
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.CheckIn(context.Background(), "sess-1", "student-1", anchorLat, anchorLng)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, duplicate int
	for err := range errs {
		var dup *AlreadyCheckedInError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &dup):
			duplicate++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("successful check-ins = %d, want exactly 1", ok)
	}
	if env.repo.count() != 1 {
		t.Errorf("rows = %d, want 1", env.repo.count())
	}
}

func TestCheckIn_RateLimitCapsRetries(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 5, 0, 0, time.UTC)
	sess := activeSession(now)
	env := newTestEnv(now, sess)

	// Out-of-range attempts burn the budget without writing rows.
	var rateLimited bool
	for i := 0; i < 4; i++ {
		_, err := env.svc.CheckIn(context.Background(), "sess-1", "student-1", anchorLat+0.01, anchorLng)
		if errors.Is(err, ErrRateLimited) {
			rateLimited = true
			break
		}
		var oor *OutOfRangeError
		if !errors.As(err, &oor) {
			t.Fatalf("attempt %d: err = %v, want OutOfRangeError", i, err)
		}
	}
	if !rateLimited {
		t.Error("fourth attempt within the window should be rate limited")
	}
}
