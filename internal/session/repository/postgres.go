package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"presensi-praktikum/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, class_id, title, scheduled_date, duration_min, is_active,
	activated_at, expires_at, anchor_lat, anchor_lng, radius_m, deactivated_at, created_at`

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM practicum_sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO practicum_sessions
		   (id, class_id, title, scheduled_date, duration_min, is_active,
		    activated_at, expires_at, anchor_lat, anchor_lng, radius_m, deactivated_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.ClassID, s.Title, s.ScheduledDate, s.DurationMin, s.IsActive,
		s.ActivatedAt, s.ExpiresAt, s.AnchorLat, s.AnchorLng, s.RadiusM, s.DeactivatedAt, s.CreatedAt)
	return err
}

// ListByClass returns all sessions for the class ordered by scheduled date.
func (r *PostgresRepository) ListByClass(ctx context.Context, classID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM practicum_sessions
		 WHERE class_id = $1 ORDER BY scheduled_date, created_at`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Activate flips the session to admitting with a guarded update: the WHERE
// clause re-checks that the session is not currently admitting, so two
// concurrent activations cannot both apply. Returns whether the update took.
func (r *PostgresRepository) Activate(ctx context.Context, id string, lat, lng, radiusM float64, durationMin int, activatedAt, expiresAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE practicum_sessions
		 SET is_active = TRUE, activated_at = $2, expires_at = $3,
		     anchor_lat = $4, anchor_lng = $5, radius_m = $6, duration_min = $7,
		     deactivated_at = NULL
		 WHERE id = $1
		   AND NOT (is_active AND anchor_lat IS NOT NULL AND expires_at > $2)`,
		id, activatedAt, expiresAt, lat, lng, radiusM, durationMin)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Extend pushes expires_at forward, guarded on the session still admitting at
// now. Returns the new deadline, or nil when the guard did not match.
func (r *PostgresRepository) Extend(ctx context.Context, id string, extra time.Duration, now time.Time) (*time.Time, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE practicum_sessions
		 SET expires_at = expires_at + $2
		 WHERE id = $1
		   AND is_active AND anchor_lat IS NOT NULL AND expires_at > $3
		 RETURNING expires_at`,
		id, extra, now)
	var expiresAt time.Time
	if err := row.Scan(&expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &expiresAt, nil
}

// Deactivate closes an admitting session, recording when the instructor shut
// it. The guard makes repeated calls no-ops. Returns whether the update took.
func (r *PostgresRepository) Deactivate(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE practicum_sessions
		 SET is_active = FALSE, deactivated_at = $2
		 WHERE id = $1
		   AND is_active AND anchor_lat IS NOT NULL AND expires_at > $2`,
		id, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.ClassID, &s.Title, &s.ScheduledDate, &s.DurationMin, &s.IsActive,
		&s.ActivatedAt, &s.ExpiresAt, &s.AnchorLat, &s.AnchorLng, &s.RadiusM, &s.DeactivatedAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
