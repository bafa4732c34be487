package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"presensi-praktikum/internal/class/domain"
	enrollmentdomain "presensi-praktikum/internal/enrollment/domain"
)

// Sentinel errors for the class service; handler maps them to HTTP codes.
var (
	ErrClassNotFound   = errors.New("class not found")
	ErrAlreadyEnrolled = errors.New("user already enrolled in the class")
	ErrInvalidRole     = errors.New("invalid enrollment role")
)

// ClassRepo is the minimal class repository needed by the class service.
type ClassRepo interface {
	GetClassByID(ctx context.Context, id string) (*domain.Class, error)
	CreateClass(ctx context.Context, c *domain.Class) error
	GetConfig(ctx context.Context, classID string) (*domain.Config, error)
	UpsertConfig(ctx context.Context, classID string, cfg *domain.Config) error
}

// EnrollmentRepo is the minimal enrollment repository needed by the class service.
type EnrollmentRepo interface {
	GetEnrollmentByUserAndClass(ctx context.Context, userID, classID string) (*enrollmentdomain.Enrollment, error)
	ListEnrollmentsByClass(ctx context.Context, classID string) ([]*enrollmentdomain.Enrollment, error)
	CreateEnrollment(ctx context.Context, e *enrollmentdomain.Enrollment) error
}

// ClassService manages classes, their attendance configuration, and roster
// membership.
type ClassService struct {
	classRepo      ClassRepo
	enrollmentRepo EnrollmentRepo
	nowF           func() time.Time
}

// NewClassService returns a ClassService with the given dependencies.
func NewClassService(classRepo ClassRepo, enrollmentRepo EnrollmentRepo) *ClassService {
	return &ClassService{
		classRepo:      classRepo,
		enrollmentRepo: enrollmentRepo,
		nowF:           func() time.Time { return time.Now().UTC() },
	}
}

// CreateClass creates a class and enrolls the creator as its instructor.
func (s *ClassService) CreateClass(ctx context.Context, name, creatorID string) (*domain.Class, error) {
	now := s.nowF()
	c := &domain.Class{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: now,
	}
	if err := s.classRepo.CreateClass(ctx, c); err != nil {
		return nil, err
	}
	err := s.enrollmentRepo.CreateEnrollment(ctx, &enrollmentdomain.Enrollment{
		ID:        uuid.New().String(),
		UserID:    creatorID,
		ClassID:   c.ID,
		Role:      enrollmentdomain.RoleInstructor,
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetClass returns the class, or ErrClassNotFound.
func (s *ClassService) GetClass(ctx context.Context, classID string) (*domain.Class, error) {
	c, err := s.classRepo.GetClassByID(ctx, classID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrClassNotFound
	}
	return c, nil
}

// GetConfig returns the effective config for the class: the stored row with
// zero fields filled from defaults, or the full defaults when none is stored.
func (s *ClassService) GetConfig(ctx context.Context, classID string) (*domain.Config, error) {
	if _, err := s.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	cfg, err := s.classRepo.GetConfig(ctx, classID)
	if err != nil {
		return nil, err
	}
	return domain.MergeWithDefaults(cfg), nil
}

// UpdateConfig saves the class config. Zero fields fall back to defaults.
func (s *ClassService) UpdateConfig(ctx context.Context, classID string, cfg *domain.Config) (*domain.Config, error) {
	if _, err := s.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	if err := s.classRepo.UpsertConfig(ctx, classID, cfg); err != nil {
		return nil, err
	}
	return s.classRepo.GetConfig(ctx, classID)
}

// Enroll adds the user to the class roster with the given role. Enrolling an
// already enrolled user fails with ErrAlreadyEnrolled regardless of role.
func (s *ClassService) Enroll(ctx context.Context, classID, userID string, role enrollmentdomain.Role) (*enrollmentdomain.Enrollment, error) {
	if role != enrollmentdomain.RoleStudent && role != enrollmentdomain.RoleInstructor {
		return nil, ErrInvalidRole
	}
	if _, err := s.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	existing, err := s.enrollmentRepo.GetEnrollmentByUserAndClass(ctx, userID, classID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyEnrolled
	}
	e := &enrollmentdomain.Enrollment{
		ID:        uuid.New().String(),
		UserID:    userID,
		ClassID:   classID,
		Role:      role,
		CreatedAt: s.nowF(),
	}
	if err := s.enrollmentRepo.CreateEnrollment(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// ListEnrollments returns the class roster.
func (s *ClassService) ListEnrollments(ctx context.Context, classID string) ([]*enrollmentdomain.Enrollment, error) {
	if _, err := s.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	return s.enrollmentRepo.ListEnrollmentsByClass(ctx, classID)
}
