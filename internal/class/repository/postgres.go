package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"presensi-praktikum/internal/class/domain"
)

type PostgresRepository struct {
	db       *sql.DB
	defaults *domain.Config
}

// NewPostgresRepository returns a class repository that uses the given db for
// persistence. defaults is the fallback config for classes with no stored row,
// typically built from the environment; nil means the built-in defaults.
func NewPostgresRepository(db *sql.DB, defaults *domain.Config) *PostgresRepository {
	return &PostgresRepository{db: db, defaults: domain.Merge(defaults, nil)}
}

// GetClassByID returns the class for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetClassByID(ctx context.Context, id string) (*domain.Class, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM classes WHERE id = $1`, id)
	var c domain.Class
	if err := row.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// CreateClass persists the class to the database. The class must have ID set.
func (r *PostgresRepository) CreateClass(ctx context.Context, c *domain.Class) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO classes (id, name, created_at) VALUES ($1, $2, $3)`,
		c.ID, c.Name, c.CreatedAt)
	return err
}

// GetConfig returns the stored config for the class, or a copy of the
// repository's fallback config if none has been saved.
func (r *PostgresRepository) GetConfig(ctx context.Context, classID string) (*domain.Config, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT total_sessions_planned, min_attendance_pct, grace_minutes,
		        default_radius_m, default_duration_min, updated_at
		 FROM class_configs WHERE class_id = $1`, classID)
	var c domain.Config
	err := row.Scan(&c.TotalSessionsPlanned, &c.MinAttendancePct, &c.GraceMinutes,
		&c.DefaultRadiusM, &c.DefaultDurationMin, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			cp := *r.defaults
			return &cp, nil
		}
		return nil, err
	}
	return &c, nil
}

// UpsertConfig saves or replaces the config for the class. Zero fields are
// filled from the repository's fallback config before storing, so stored rows
// are always complete.
func (r *PostgresRepository) UpsertConfig(ctx context.Context, classID string, cfg *domain.Config) error {
	merged := domain.Merge(cfg, r.defaults)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO class_configs
		   (class_id, total_sessions_planned, min_attendance_pct, grace_minutes,
		    default_radius_m, default_duration_min, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (class_id) DO UPDATE SET
		   total_sessions_planned = EXCLUDED.total_sessions_planned,
		   min_attendance_pct = EXCLUDED.min_attendance_pct,
		   grace_minutes = EXCLUDED.grace_minutes,
		   default_radius_m = EXCLUDED.default_radius_m,
		   default_duration_min = EXCLUDED.default_duration_min,
		   updated_at = EXCLUDED.updated_at`,
		classID, merged.TotalSessionsPlanned, merged.MinAttendancePct, merged.GraceMinutes,
		merged.DefaultRadiusM, merged.DefaultDurationMin, time.Now().UTC())
	return err
}
