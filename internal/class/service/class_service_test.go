package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"presensi-praktikum/internal/class/domain"
	enrollmentdomain "presensi-praktikum/internal/enrollment/domain"
)

type fakeClassRepo struct {
	mu      sync.Mutex
	classes map[string]*domain.Class
	configs map[string]*domain.Config
}

func newFakeClassRepo() *fakeClassRepo {
	return &fakeClassRepo{classes: map[string]*domain.Class{}, configs: map[string]*domain.Config{}}
}

func (f *fakeClassRepo) GetClassByID(_ context.Context, id string) (*domain.Class, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.classes[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeClassRepo) CreateClass(_ context.Context, c *domain.Class) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.classes[c.ID] = &cp
	return nil
}

func (f *fakeClassRepo) GetConfig(_ context.Context, classID string) (*domain.Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.configs[classID]
	if !ok {
		return nil, nil
	}
	cp := *cfg
	return &cp, nil
}

func (f *fakeClassRepo) UpsertConfig(_ context.Context, classID string, cfg *domain.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs[classID] = domain.MergeWithDefaults(cfg)
	return nil
}

type fakeEnrollmentRepo struct {
	mu          sync.Mutex
	enrollments []*enrollmentdomain.Enrollment
}

func (f *fakeEnrollmentRepo) GetEnrollmentByUserAndClass(_ context.Context, userID, classID string) (*enrollmentdomain.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.enrollments {
		if e.UserID == userID && e.ClassID == classID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeEnrollmentRepo) ListEnrollmentsByClass(_ context.Context, classID string) ([]*enrollmentdomain.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*enrollmentdomain.Enrollment
	for _, e := range f.enrollments {
		if e.ClassID == classID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeEnrollmentRepo) CreateEnrollment(_ context.Context, e *enrollmentdomain.Enrollment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	f.enrollments = append(f.enrollments, &cp)
	return nil
}

func newService() (*ClassService, *fakeClassRepo, *fakeEnrollmentRepo) {
	classes := newFakeClassRepo()
	enrollments := &fakeEnrollmentRepo{}
	return NewClassService(classes, enrollments), classes, enrollments
}

func TestCreateClass_EnrollsCreatorAsInstructor(t *testing.T) {
	svc, _, enrollments := newService()
	c, err := svc.CreateClass(context.Background(), "Praktikum Jaringan", "lecturer-1")
	if err != nil {
		t.Fatalf("CreateClass: %v", err)
	}
	e, err := enrollments.GetEnrollmentByUserAndClass(context.Background(), "lecturer-1", c.ID)
	if err != nil {
		t.Fatalf("GetEnrollmentByUserAndClass: %v", err)
	}
	if e == nil || e.Role != enrollmentdomain.RoleInstructor {
		t.Fatalf("creator enrollment = %+v, want instructor", e)
	}
}

func TestGetConfig_DefaultsWhenUnset(t *testing.T) {
	svc, _, _ := newService()
	c, err := svc.CreateClass(context.Background(), "Praktikum Basis Data", "lecturer-1")
	if err != nil {
		t.Fatalf("CreateClass: %v", err)
	}
	cfg, err := svc.GetConfig(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	want := domain.DefaultConfig()
	if cfg.TotalSessionsPlanned != want.TotalSessionsPlanned || cfg.MinAttendancePct != want.MinAttendancePct {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestGetConfig_UnknownClass(t *testing.T) {
	svc, _, _ := newService()
	if _, err := svc.GetConfig(context.Background(), "missing"); !errors.Is(err, ErrClassNotFound) {
		t.Fatalf("err = %v, want ErrClassNotFound", err)
	}
}

func TestUpdateConfig_PartialFallsBackToDefaults(t *testing.T) {
	svc, _, _ := newService()
	c, err := svc.CreateClass(context.Background(), "Praktikum SO", "lecturer-1")
	if err != nil {
		t.Fatalf("CreateClass: %v", err)
	}
	stored, err := svc.UpdateConfig(context.Background(), c.ID, &domain.Config{GraceMinutes: 15})
	if err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	if stored.GraceMinutes != 15 {
		t.Errorf("GraceMinutes = %d, want 15", stored.GraceMinutes)
	}
	if stored.TotalSessionsPlanned != 14 {
		t.Errorf("TotalSessionsPlanned = %d, want default 14", stored.TotalSessionsPlanned)
	}
}

func TestEnroll(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	c, err := svc.CreateClass(ctx, "Praktikum AI", "lecturer-1")
	if err != nil {
		t.Fatalf("CreateClass: %v", err)
	}

	if _, err := svc.Enroll(ctx, c.ID, "student-1", enrollmentdomain.RoleStudent); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if _, err := svc.Enroll(ctx, c.ID, "student-1", enrollmentdomain.RoleStudent); !errors.Is(err, ErrAlreadyEnrolled) {
		t.Fatalf("err = %v, want ErrAlreadyEnrolled", err)
	}
	if _, err := svc.Enroll(ctx, c.ID, "student-2", enrollmentdomain.Role("janitor")); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("err = %v, want ErrInvalidRole", err)
	}
	if _, err := svc.Enroll(ctx, "missing", "student-2", enrollmentdomain.RoleStudent); !errors.Is(err, ErrClassNotFound) {
		t.Fatalf("err = %v, want ErrClassNotFound", err)
	}

	roster, err := svc.ListEnrollments(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListEnrollments: %v", err)
	}
	// Creator plus one student.
	if len(roster) != 2 {
		t.Fatalf("roster = %d entries, want 2", len(roster))
	}
}
