package rbac

import (
	"context"
	"errors"

	"presensi-praktikum/internal/enrollment/domain"
)

// Sentinel errors returned by the guards; handlers map them to 401/403.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrNotEnrolled     = errors.New("not enrolled in this class")
	ErrNotInstructor   = errors.New("instructor role required")
)

// EnrollmentGetter resolves a user's enrollment in a class. Used by the guards
// to resolve caller role.
type EnrollmentGetter interface {
	GetEnrollmentByUserAndClass(ctx context.Context, userID, classID string) (*domain.Enrollment, error)
}

// RequireInstructor ensures the caller is enrolled in the class with the
// instructor role.
func RequireInstructor(ctx context.Context, getter EnrollmentGetter, userID, classID string) error {
	e, err := requireEnrollment(ctx, getter, userID, classID)
	if err != nil {
		return err
	}
	if e.Role != domain.RoleInstructor {
		return ErrNotInstructor
	}
	return nil
}

// RequireEnrolled ensures the caller is enrolled in the class with any role.
func RequireEnrolled(ctx context.Context, getter EnrollmentGetter, userID, classID string) error {
	_, err := requireEnrollment(ctx, getter, userID, classID)
	return err
}

func requireEnrollment(ctx context.Context, getter EnrollmentGetter, userID, classID string) (*domain.Enrollment, error) {
	if userID == "" || classID == "" {
		return nil, ErrUnauthenticated
	}
	e, err := getter.GetEnrollmentByUserAndClass(ctx, userID, classID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrNotEnrolled
	}
	return e, nil
}
