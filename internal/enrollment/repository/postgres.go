package repository

import (
	"context"
	"database/sql"
	"errors"

	"presensi-praktikum/internal/enrollment/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an enrollment repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetEnrollmentByUserAndClass returns the enrollment for the given user and class, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetEnrollmentByUserAndClass(ctx context.Context, userID, classID string) (*domain.Enrollment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, class_id, role, created_at
		 FROM enrollments WHERE user_id = $1 AND class_id = $2`, userID, classID)
	var e domain.Enrollment
	if err := row.Scan(&e.ID, &e.UserID, &e.ClassID, &e.Role, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// ListEnrollmentsByClass returns all enrollments for the given class.
// Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListEnrollmentsByClass(ctx context.Context, classID string) ([]*domain.Enrollment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, class_id, role, created_at
		 FROM enrollments WHERE class_id = $1 ORDER BY created_at`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Enrollment
	for rows.Next() {
		var e domain.Enrollment
		if err := rows.Scan(&e.ID, &e.UserID, &e.ClassID, &e.Role, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// CreateEnrollment persists the enrollment to the database. The enrollment must have ID set.
func (r *PostgresRepository) CreateEnrollment(ctx context.Context, e *domain.Enrollment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO enrollments (id, user_id, class_id, role, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.UserID, e.ClassID, e.Role, e.CreatedAt)
	return err
}
